// Package render turns the published knowledge base into a guidance
// document for contributors. Output is deterministic: fixed section
// order, rules sorted by descending confidence with lexicographic ties.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
)

// minConfidence is the floor below which a rule never reaches the
// rendered document, matching the publication floor.
const minConfidence = 0.60

// sectionOrder fixes the category section sequence.
var sectionOrder = []model.Category{
	model.CategoryArchitecture,
	model.CategoryDesign,
	model.CategoryStyle,
	model.CategoryTesting,
	model.CategoryWorkflow,
	model.CategorySecurity,
	model.CategoryPerformance,
	model.CategoryDomain,
	model.CategoryProduct,
	model.CategoryGeneral,
}

var sectionTitles = map[model.Category]string{
	model.CategoryArchitecture: "Architecture",
	model.CategoryDesign:       "Design",
	model.CategoryStyle:        "Code Style",
	model.CategoryTesting:      "Testing",
	model.CategoryWorkflow:     "Workflow",
	model.CategorySecurity:     "Security",
	model.CategoryPerformance:  "Performance",
	model.CategoryDomain:       "Domain Knowledge",
	model.CategoryProduct:      "Product",
	model.CategoryGeneral:      "General",
}

var prohibitionMarkers = []string{"never ", "do not ", "don't ", "avoid "}

// Guidance renders the guidance document for a repository from the store.
func Guidance(ctx context.Context, st store.Store, repo string) (string, error) {
	rules, err := st.ListRules(ctx, store.RuleFilter{
		PublishedOnly: true,
		MinConfidence: minConfidence,
	})
	if err != nil {
		return "", eris.Wrap(err, "render: list rules")
	}
	return FormatGuidance(repo, rules), nil
}

// FormatGuidance builds the document from an already-loaded rule set.
// Prohibition rules are pulled out of their category sections into a
// final "Do Not" section.
func FormatGuidance(repo string, rules []model.Rule) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Working Agreements: %s\n\n", repo)
	fmt.Fprintf(&b, "Extracted from merged PRs, CI history, and project docs. %d rules.\n\n", len(rules))

	byCategory := make(map[model.Category][]model.Rule)
	var prohibitions []model.Rule
	for _, r := range rules {
		if isProhibition(r.Text) {
			prohibitions = append(prohibitions, r)
			continue
		}
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	for _, cat := range sectionOrder {
		section := byCategory[cat]
		if len(section) == 0 {
			continue
		}
		sortRules(section)
		fmt.Fprintf(&b, "## %s\n", sectionTitles[cat])
		for _, r := range section {
			writeRule(&b, r)
		}
		b.WriteString("\n")
	}

	if len(prohibitions) > 0 {
		sortRules(prohibitions)
		b.WriteString("## Do Not\n")
		for _, r := range prohibitions {
			writeRule(&b, r)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeRule(b *strings.Builder, r model.Rule) {
	fmt.Fprintf(b, "- %s [%.0f%%, %s]\n", r.Text, r.Confidence*100, r.SourceKind)
}

// sortRules orders by descending confidence, then text.
func sortRules(rules []model.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Confidence != rules[j].Confidence {
			return rules[i].Confidence > rules[j].Confidence
		}
		return rules[i].Text < rules[j].Text
	})
}

func isProhibition(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range prohibitionMarkers {
		if strings.HasPrefix(lower, m) {
			return true
		}
	}
	return false
}
