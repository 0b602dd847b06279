package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/pkg/claude"
	"github.com/sells-group/tacit-cli/pkg/github"
)

// SelectKnowledgeRichPRs asks the scanner model which merged PRs deserve a
// deep discussion read: first-time contributors and reviews that requested
// changes carry most of the unwritten conventions. The scanner's pick
// order is preserved; numbers it invents are dropped. When the candidate
// pool already fits the budget there is nothing to triage and no call is
// made.
func SelectKnowledgeRichPRs(ctx context.Context, tools ToolAccess, repo string, prs []github.PullRequest, known []string, max int) ([]github.PullRequest, error) {
	if len(prs) <= max {
		return prs, nil
	}

	var sb strings.Builder
	for _, pr := range prs {
		fmt.Fprintf(&sb, "#%d %q by %s, merged %s", pr.Number, pr.Title, pr.Author, pr.MergedAt.Format("2006-01-02"))
		if len(pr.Labels) > 0 {
			fmt.Fprintf(&sb, ", labels: %s", strings.Join(pr.Labels, ", "))
		}
		sb.WriteString("\n")
	}

	knownBlock := "(none)"
	if len(known) > 0 {
		knownBlock = "- " + strings.Join(known, "\n- ")
	}

	prompt := fmt.Sprintf(scanPrompt, repo, sb.String(), knownBlock, max)
	resp, err := tools.Claude.CreateMessage(ctx, claude.MessageRequest{
		Model:     tools.Model,
		MaxTokens: tools.MaxTokens,
		System:    claude.BuildCachedSystemBlocks(systemPreamble),
		Messages:  []claude.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "task pr_scan: model call")
	}
	resp.Usage.LogCost(tools.Model, "pr_scan")

	numbers := parsePRNumbers(resp.Text())
	if len(numbers) == 0 {
		return nil, eris.New("task pr_scan: no PR numbers in model response")
	}

	byNumber := make(map[int]github.PullRequest, len(prs))
	for _, pr := range prs {
		byNumber[pr.Number] = pr
	}
	out := make([]github.PullRequest, 0, max)
	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		pr, ok := byNumber[n]
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, pr)
		if len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil, eris.New("task pr_scan: scanner picked no known PRs")
	}

	zap.L().Info("scanner selected PRs",
		zap.String("repo", repo),
		zap.Int("scanned", len(prs)),
		zap.Int("selected", len(out)),
	)
	return out, nil
}

// parsePRNumbers accepts either a bare number array or the object form
// [{"pr_number": 128}, ...].
func parsePRNumbers(raw string) []int {
	payload := extractJSON(raw)
	if payload == "" {
		return nil
	}

	var plain []int
	if err := json.Unmarshal([]byte(payload), &plain); err == nil {
		return plain
	}

	var objs []struct {
		PRNumber int `json:"pr_number"`
	}
	if err := json.Unmarshal([]byte(payload), &objs); err == nil {
		out := make([]int, 0, len(objs))
		for _, o := range objs {
			if o.PRNumber != 0 {
				out = append(out, o.PRNumber)
			}
		}
		return out
	}
	return nil
}
