package task

// systemPreamble is shared by every analysis call and cached server-side,
// so a run's many task invocations pay its tokens once.
const systemPreamble = `You extract tacit engineering knowledge from repository evidence: the
unwritten conventions a team enforces in reviews but never documented.
You respond with exactly the JSON the user's instructions specify and no
other prose.`

// candidateSchema is appended to every analysis prompt so the model emits a
// parseable array.
const candidateSchema = `Return a valid JSON array of candidate rules (or [] if none):
[{"text": "<imperative rule, one sentence, naming a project-specific entity>",
  "category": "<architecture|testing|style|workflow|security|performance|domain|design|product|general>",
  "confidence": <0.0-1.0>,
  "source_kind": "<%s>",
  "source_ref": "%s",
  "provenance_url": "<url of the evidence, if any>",
  "provenance_summary": "<one sentence naming the evidence>",
  "applicable_paths": ["<repo paths the rule applies to, if limited>"]}]

Only include rules a new contributor to THIS repository could act on.
Skip generic software advice ("write tests", "use good names"): every rule
must mention a concrete API, config key, file path, or tool from the
evidence. Rate confidence by how directly the evidence supports the rule.`

const structurePrompt = `You are a senior engineer inferring working conventions from a repository's file layout.

Repository: %s
File tree:
%s

Extract conventions the layout enforces: where packages live, how commands,
tests, and configs are organized, naming patterns that repeat.

%s`

const docsPrompt = `You are a senior engineer extracting actionable conventions from project documentation.

Repository: %s
%s

Extract only rules the documentation states or strongly implies. Prefer
instructions contributors must follow over descriptions of what exists.

%s`

const configPrompt = `You are a senior engineer reading a project's tooling configuration.

Repository: %s
%s

Extract the conventions the configuration enforces: lint rules worth knowing,
build and release constraints, CI expectations, pinned tool versions.

%s`

const codePrompt = `You are a senior engineer reading representative source files from a repository.

Repository: %s
%s

Extract conventions the code itself enforces: how packages are wired, the
error handling and logging idioms that repeat, test layout, patterns a new
contributor has to copy to fit in.

%s`

const scanPrompt = `You are a senior engineer triaging merged pull requests for knowledge-rich discussions.

Repository: %s
Merged pull requests:
%s

Conventions already extracted (prefer PRs likely to surface new ones):
%s

Pick the %d pull requests whose discussions most likely encode unwritten
team conventions. Prioritize first-time contributors (their reviews spell
the norms out) and PRs whose reviews requested changes.

Return a valid JSON array of the chosen PR numbers, e.g. [128, 93, 77].`

const ciFixPrompt = `You are a senior engineer studying commits that repaired a broken CI pipeline.

Repository: %s
CI-fix commits:
%s

Each commit fixed a real failure, so the lesson behind it is worth recording.
Emit "ci_fix" rules for what the fix teaches, and "anti_pattern" rules for
the mistake that broke the build in the first place.

%s`

const prThreadPrompt = `You are a senior engineer mining a merged pull request discussion for team conventions.

Repository: %s
%s

Known rules already in the knowledge base (do not re-extract these):
%s

Extract rules from what reviewers asked for and what the author changed in
response. Use source_kind "pr" for conventions visible in the change itself,
"conversation" for norms stated in discussion, and "anti_pattern" for
approaches a reviewer explicitly rejected.

%s`
