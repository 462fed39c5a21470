package usecase

import (
	"sort"

	"github.com/caiomeira/extractd/internal/core/domain"
)

// llmSkip lists fields the fallback model is known to get wrong; they are
// never delegated even when unresolved.
var llmSkip = map[domain.Label]map[string]bool{
	domain.LabelCarteiraOAB: {"telefone_profissional": true},
}

// coverage is the fraction of requested fields matched at or above the
// per-field confidence floor.
func coverage(matches []domain.FieldMatch, minConfidence float64) float64 {
	if len(matches) == 0 {
		return 1.0
	}
	filled := 0
	for _, m := range matches {
		if m.Matched(minConfidence) {
			filled++
		}
	}
	return float64(filled) / float64(len(matches))
}

// llmEligible decides whether the fallback gate opens and which fields go
// through it: only unresolved (or under-confident) fields, minus the
// per-label skip list, sorted for deterministic prompts. Already-confident
// fields are never re-sent.
func llmEligible(label domain.Label, matches []domain.FieldMatch, before, threshold, minConfidence float64, useLLM bool) []string {
	if !useLLM || before >= threshold {
		return nil
	}
	skip := llmSkip[label]
	var fields []string
	for _, m := range matches {
		if m.Matched(minConfidence) {
			continue
		}
		if skip[m.Field] {
			continue
		}
		fields = append(fields, m.Field)
	}
	sort.Strings(fields)
	return fields
}
