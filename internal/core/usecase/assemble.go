package usecase

import (
	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/schema"
)

// assemble projects the canonical match set onto the caller's original key
// order. Every requested key appears; anything absent from the match map
// comes out as "" (defends against partial results from a degraded cache
// entry).
func assemble(req schema.Request, matches []domain.FieldMatch, report domain.CoverageReport, debug domain.Debug) domain.ExtractionResult {
	byField := make(map[string]domain.FieldMatch, len(matches))
	for _, m := range matches {
		byField[m.Field] = m
	}

	result := domain.ExtractionResult{
		Label:  req.Label,
		Keys:   append([]string(nil), req.Requested...),
		Values: make(map[string]string, len(req.Requested)),
		Debug:  debug,
	}
	result.Debug.LayoutFinal = report.Selected
	result.Debug.Coverage = domain.DebugCoverage{
		Threshold: report.Threshold,
		Before:    report.Before,
		After:     report.After,
	}
	result.Debug.PerLayout = report.PerLayout
	result.Debug.PerField = make(map[string]domain.DebugField, len(req.Requested))

	for _, orig := range req.Requested {
		m, ok := byField[req.CanonicalFor(orig)]
		if !ok {
			result.Values[orig] = ""
			result.Debug.PerField[orig] = domain.DebugField{Route: domain.RouteNone}
			continue
		}
		result.Values[orig] = m.Value
		result.Debug.PerField[orig] = domain.DebugField{Route: m.Route, Confidence: m.Confidence}
	}
	return result
}
