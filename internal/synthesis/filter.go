package synthesis

import (
	_ "embed"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed denylist.yaml
var denylistYAML []byte

type denylistFile struct {
	Phrases []string `yaml:"phrases"`
}

// denylist holds lowercased generic phrasings loaded at init.
var denylist = loadDenylist()

func loadDenylist() []string {
	var file denylistFile
	if err := yaml.Unmarshal(denylistYAML, &file); err != nil {
		// The file is embedded at build time, so this means a bad edit.
		panic("synthesis: parse denylist.yaml: " + err.Error())
	}
	out := make([]string, 0, len(file.Phrases))
	for _, p := range file.Phrases {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}

// FilterReason says why a candidate was rejected.
type FilterReason string

const (
	FilterNotSpecific FilterReason = "no project-specific entity"
	FilterDenylisted  FilterReason = "matches generic-rule denylist"
)

// filterCandidate applies the specificity heuristic and the denylist.
// Task-level self-filtering is a prompt contract upstream of this point.
// An empty reason means the candidate passes.
func filterCandidate(text string) FilterReason {
	lower := strings.ToLower(text)
	for _, phrase := range denylist {
		if strings.Contains(lower, phrase) {
			return FilterDenylisted
		}
	}
	if !mentionsSpecificEntity(text) {
		return FilterNotSpecific
	}
	return ""
}

// mentionsSpecificEntity reports whether the text names something concrete:
// a path, a dotted or dashed identifier, a CamelCase or snake_case symbol,
// a backticked term, or an all-caps tool name. A rule with none of these
// is generic advice.
func mentionsSpecificEntity(text string) bool {
	if strings.Contains(text, "`") {
		return true
	}
	for i, word := range strings.Fields(text) {
		// Strip sentence punctuation but keep leading dots: ".env" is an
		// entity, a trailing period is not.
		trimmed := strings.Trim(word, ",;:!?()\"'")
		trimmed = strings.TrimRight(trimmed, ".")
		if trimmed == "" {
			continue
		}
		if strings.ContainsAny(trimmed, "/_") {
			return true
		}
		// Dotted or dot-prefixed identifiers: eris.Wrap, config.yaml, .env.
		if strings.Contains(trimmed, ".") {
			return true
		}
		if strings.Contains(trimmed, "-") && len(trimmed) > 3 {
			return true
		}
		if hasInteriorUpper(trimmed) {
			return true
		}
		// All-caps names like CI or TACIT only count past position 0,
		// where they cannot be sentence-start artifacts.
		if i > 0 && len(trimmed) >= 2 && isAllUpper(trimmed) {
			return true
		}
		if i > 0 && startsUpper(trimmed) {
			// Mid-sentence proper noun: Makefile, Dockerfile, Postgres.
			return true
		}
	}
	return false
}

func hasInteriorUpper(s string) bool {
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
