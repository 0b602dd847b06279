package task

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
	"github.com/sells-group/tacit-cli/pkg/claude"
)

// docPaths are the documentation files the docs task tries to fetch.
var docPaths = []string{
	"README.md",
	"CONTRIBUTING.md",
	"CLAUDE.md",
	"docs/ARCHITECTURE.md",
	"ARCHITECTURE.md",
}

// configPaths are the tooling files the config task tries to fetch.
var configPaths = []string{
	".golangci.yml",
	".golangci.yaml",
	"Makefile",
	"Dockerfile",
	".github/workflows/ci.yml",
	".github/workflows/ci.yaml",
	".pre-commit-config.yaml",
}

// maxTreeEntries caps the file listing sent to the model.
const maxTreeEntries = 400

// callModel runs one prompt through the client and parses the candidates.
func callModel(ctx context.Context, tools ToolAccess, name, phase, prompt string, allowed ...model.SourceKind) ([]model.Candidate, error) {
	resp, err := tools.Claude.CreateMessage(ctx, claude.MessageRequest{
		Model:     tools.Model,
		MaxTokens: tools.MaxTokens,
		System:    claude.BuildCachedSystemBlocks(systemPreamble),
		Messages:  []claude.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "task %s: model call", name)
	}
	resp.Usage.LogCost(tools.Model, name)

	candidates, err := ParseCandidates(name, phase, resp.Text(), allowed...)
	if err != nil {
		return nil, err
	}
	zap.L().Info("task produced candidates",
		zap.String("task", name),
		zap.String("phase", phase),
		zap.Int("count", len(candidates)),
	)
	return candidates, nil
}

// StructureTask infers conventions from the repository file tree.
type StructureTask struct {
	Repo  string
	Phase string
}

func (t StructureTask) Name() string { return "structure_analysis" }

func (t StructureTask) Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error) {
	paths, err := tools.Evidence.ListTree(ctx, t.Repo)
	if err != nil {
		return nil, err
	}
	if len(paths) > maxTreeEntries {
		paths = paths[:maxTreeEntries]
	}

	schema := fmt.Sprintf(candidateSchema, model.SourceStructure, "tree:"+t.Repo)
	prompt := fmt.Sprintf(structurePrompt, t.Repo, strings.Join(paths, "\n"), schema)
	return callModel(ctx, tools, t.Name(), t.Phase, prompt, model.SourceStructure)
}

// DocsTask extracts conventions from project documentation.
type DocsTask struct {
	Repo  string
	Phase string
}

func (t DocsTask) Name() string { return "docs_analysis" }

func (t DocsTask) Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error) {
	evidence := collectFiles(ctx, tools, t.Repo, docPaths)
	if evidence == "" {
		zap.L().Info("no documentation files found", zap.String("repo", t.Repo))
		return nil, nil
	}

	schema := fmt.Sprintf(candidateSchema, model.SourceDocs, "docs:"+t.Repo)
	prompt := fmt.Sprintf(docsPrompt, t.Repo, evidence, schema)
	return callModel(ctx, tools, t.Name(), t.Phase, prompt, model.SourceDocs)
}

// ConfigTask extracts conventions enforced by tooling configuration.
type ConfigTask struct {
	Repo  string
	Phase string
}

func (t ConfigTask) Name() string { return "config_analysis" }

func (t ConfigTask) Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error) {
	evidence := collectFiles(ctx, tools, t.Repo, configPaths)
	if evidence == "" {
		zap.L().Info("no tooling configuration found", zap.String("repo", t.Repo))
		return nil, nil
	}

	schema := fmt.Sprintf(candidateSchema, model.SourceConfig, "config:"+t.Repo)
	prompt := fmt.Sprintf(configPrompt, t.Repo, evidence, schema)
	return callModel(ctx, tools, t.Name(), t.Phase, prompt, model.SourceConfig)
}

// maxCodeSamples caps the source files the code task fetches.
const maxCodeSamples = 5

// CodeSampleTask reads a handful of representative source files and
// extracts the conventions the code itself enforces.
type CodeSampleTask struct {
	Repo  string
	Phase string
}

func (t CodeSampleTask) Name() string { return "code_analysis" }

func (t CodeSampleTask) Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error) {
	paths, err := tools.Evidence.ListTree(ctx, t.Repo)
	if err != nil {
		return nil, err
	}
	samples := selectCodeSamples(paths, maxCodeSamples)
	if len(samples) == 0 {
		zap.L().Info("no source files to sample", zap.String("repo", t.Repo))
		return nil, nil
	}

	evidence := collectFiles(ctx, tools, t.Repo, samples)
	if evidence == "" {
		return nil, nil
	}

	schema := fmt.Sprintf(candidateSchema, "structure or config", "code:"+t.Repo)
	prompt := fmt.Sprintf(codePrompt, t.Repo, evidence, schema)
	return callModel(ctx, tools, t.Name(), t.Phase, prompt,
		model.SourceStructure, model.SourceConfig)
}

// selectCodeSamples picks the shallowest source files, entry points first,
// skipping tests and vendored trees.
func selectCodeSamples(paths []string, max int) []string {
	var picked []string
	for _, p := range paths {
		if !isSourceFile(p) {
			continue
		}
		picked = append(picked, p)
	}
	sort.SliceStable(picked, func(i, j int) bool {
		di, dj := strings.Count(picked[i], "/"), strings.Count(picked[j], "/")
		if di != dj {
			return di < dj
		}
		return picked[i] < picked[j]
	})
	if len(picked) > max {
		picked = picked[:max]
	}
	return picked
}

func isSourceFile(p string) bool {
	if strings.Contains(p, "vendor/") || strings.Contains(p, "node_modules/") ||
		strings.Contains(p, "_test.") || strings.HasPrefix(path.Base(p), "test_") {
		return false
	}
	switch path.Ext(p) {
	case ".go", ".py", ".ts", ".js", ".rs", ".java", ".rb":
		return true
	}
	return false
}

// CIFixTask mines commits that repaired a broken build.
type CIFixTask struct {
	Repo       string
	Phase      string
	MaxCommits int
}

func (t CIFixTask) Name() string { return "ci_fix_analysis" }

func (t CIFixTask) Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error) {
	commits, err := tools.Evidence.ListCIFixCommits(ctx, t.Repo, t.MaxCommits)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for _, c := range commits {
		fmt.Fprintf(&sb, "--- commit %s (%s)\n%s\nfiles: %s\n",
			c.SHA, c.URL, c.Message, strings.Join(c.Files, ", "))
	}

	schema := fmt.Sprintf(candidateSchema, "ci_fix or anti_pattern", "commit:<sha>")
	prompt := fmt.Sprintf(ciFixPrompt, t.Repo, sb.String(), schema)
	return callModel(ctx, tools, t.Name(), t.Phase, prompt,
		model.SourceCIFix, model.SourceAntiPattern)
}

// PRThreadTask mines one merged PR's discussion. Built per-PR by the
// dependent phase once the PR list is known.
type PRThreadTask struct {
	Repo   string
	Number int
	Phase  string
}

func (t PRThreadTask) Name() string { return fmt.Sprintf("pr_thread_%d", t.Number) }

func (t PRThreadTask) Invoke(ctx context.Context, tools ToolAccess) ([]model.Candidate, error) {
	thread, err := tools.Evidence.GetPRThread(ctx, t.Repo, t.Number)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "PR #%d: %s (%s)\nAuthor: %s\n\n%s\n",
		thread.PR.Number, thread.PR.Title, thread.PR.URL, thread.PR.Author, thread.PR.Body)
	for _, c := range thread.Comments {
		fmt.Fprintf(&sb, "\ncomment by %s", c.Author)
		if c.Path != "" {
			fmt.Fprintf(&sb, " on %s", c.Path)
		}
		fmt.Fprintf(&sb, ":\n%s\n", c.Body)
	}
	for _, r := range thread.Reviews {
		if r.Body == "" && r.State != "CHANGES_REQUESTED" {
			continue
		}
		fmt.Fprintf(&sb, "\nreview by %s [%s]:\n%s\n", r.Author, r.State, r.Body)
	}

	known := knownRulesSummary(ctx, tools)
	schema := fmt.Sprintf(candidateSchema,
		"pr, conversation, or anti_pattern", fmt.Sprintf("pr:%d", t.Number))
	prompt := fmt.Sprintf(prThreadPrompt, t.Repo, sb.String(), known, schema)
	return callModel(ctx, tools, t.Name(), t.Phase, prompt,
		model.SourcePR, model.SourceConversation, model.SourceAntiPattern)
}

// collectFiles fetches the paths that exist and concatenates them with
// headers. Missing files are skipped silently.
func collectFiles(ctx context.Context, tools ToolAccess, repo string, paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		content, err := tools.Evidence.GetFileContent(ctx, repo, p)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "--- %s\n%s\n", p, content)
	}
	return sb.String()
}

// knownRulesSummary lists published rules so the model avoids re-extracting
// them. Best effort: a search failure just yields an empty list.
func knownRulesSummary(ctx context.Context, tools ToolAccess) string {
	if tools.Rules == nil {
		return "(none)"
	}
	rules, err := tools.Rules.ListRules(ctx, store.RuleFilter{PublishedOnly: true, Limit: 50})
	if err != nil || len(rules) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&sb, "- %s\n", r.Text)
	}
	return sb.String()
}
