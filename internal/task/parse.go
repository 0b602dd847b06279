package task

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/model"
)

// candidateJSON is the shape the model is asked to emit.
type candidateJSON struct {
	Text              string   `json:"text"`
	Category          string   `json:"category"`
	Confidence        float64  `json:"confidence"`
	SourceKind        string   `json:"source_kind"`
	SourceRef         string   `json:"source_ref"`
	ProvenanceURL     string   `json:"provenance_url"`
	ProvenanceSummary string   `json:"provenance_summary"`
	ApplicablePaths   []string `json:"applicable_paths"`
}

// extractJSON pulls the first JSON array out of a model response, tolerating
// markdown code fences and surrounding prose.
func extractJSON(raw string) string {
	s := raw
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// ParseCandidates decodes a model response into candidates. Entries with an
// empty text or an unknown source kind are dropped with a log line rather
// than failing the whole task; confidences are clamped to [0, 1].
func ParseCandidates(taskName, phase, raw string, allowed ...model.SourceKind) ([]model.Candidate, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, eris.Errorf("task %s: no JSON array in model response", taskName)
	}

	var items []candidateJSON
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, eris.Wrapf(err, "task %s: decode candidates", taskName)
	}

	out := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}

		kind := model.SourceKind(item.SourceKind)
		if !kindAllowed(kind, allowed) {
			zap.L().Debug("dropping candidate with unexpected source kind",
				zap.String("task", taskName),
				zap.String("source_kind", item.SourceKind),
			)
			continue
		}

		conf := item.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}

		out = append(out, model.Candidate{
			Text:              text,
			Category:          model.ParseCategory(item.Category),
			Confidence:        conf,
			SourceKind:        kind,
			SourceRef:         item.SourceRef,
			ProvenanceURL:     item.ProvenanceURL,
			ProvenanceSummary: item.ProvenanceSummary,
			ApplicablePaths:   item.ApplicablePaths,
			TaskName:          taskName,
			Phase:             phase,
		})
	}
	return out, nil
}

func kindAllowed(kind model.SourceKind, allowed []model.SourceKind) bool {
	if !kind.Valid() {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if kind == a {
			return true
		}
	}
	return false
}
