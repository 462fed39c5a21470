package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/layout"
	"github.com/caiomeira/extractd/internal/core/normalize"
	"github.com/caiomeira/extractd/internal/core/ports"
)

// LLM-resolved values carry a fixed confidence and are accepted regardless
// of the heuristic floor: the gateway is the last resort.
const llmConfidence = 0.66

const (
	contextWindow   = 2
	contextMaxFrags = 10
	contextMaxChars = 2500
)

type llmGateway struct {
	solver  ports.FieldSolver
	reg     *layout.Registry
	timeout time.Duration
}

// delegate sends the eligible fields to the transport and folds returned
// values into the match set as route "llm". Transport failure leaves the
// fields unmatched and is reported back, never raised.
func (g llmGateway) delegate(ctx context.Context, label domain.Label, fields []string, lines []string, matches []domain.FieldMatch) (merged int, llmErr error) {
	excerpt := anchorContext(g.reg, label, fields, lines)

	values, err := g.solver.Solve(ctx, label, fields, excerpt, g.timeout)
	if err != nil {
		return 0, domain.WrapError(domain.ErrLLMUnavailable, "llm delegate", err)
	}

	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}
	for i := range matches {
		m := &matches[i]
		if !wanted[m.Field] {
			continue
		}
		value := strings.TrimSpace(values[m.Field])
		if value == "" {
			continue
		}
		m.Raw = value
		m.Value = normalize.Field(m.Field, value)
		m.Confidence = llmConfidence
		m.Route = domain.RouteLLM
		merged++
	}
	return merged, nil
}

// anchorContext clips windows of text around anchors relevant to the
// missing fields, so the model sees targeted fragments instead of the whole
// page. Falls back to all label anchors, then to the page head.
func anchorContext(reg *layout.Registry, label domain.Label, missing []string, lines []string) string {
	folded := layout.FoldLines(lines)

	prefer := fieldAnchors(reg, label, missing)
	all := labelAnchors(reg, label)
	anchors := prefer
	if len(anchors) == 0 {
		anchors = all
	}

	var frags []string
	for i, ln := range folded {
		if !containsAny(ln, anchors) {
			continue
		}
		from, to := i-contextWindow, i+contextWindow
		if from < 0 {
			from = 0
		}
		if to >= len(lines) {
			to = len(lines) - 1
		}
		frag := strings.TrimSpace(strings.Join(lines[from:to+1], "\n"))
		if frag != "" {
			frags = append(frags, frag)
		}
		if len(frags) >= contextMaxFrags {
			break
		}
	}
	if len(frags) == 0 {
		head := lines
		if len(head) > 10 {
			head = head[:10]
		}
		frags = []string{strings.Join(head, "\n")}
	}

	var out []string
	size := 0
	for _, frag := range frags {
		if size+len(frag) > contextMaxChars {
			break
		}
		out = append(out, frag)
		size += len(frag)
	}
	return strings.Join(out, "\n---\n")
}

// fieldAnchors collects the anchor phrases of the missing fields' routes
// across every profile for the label.
func fieldAnchors(reg *layout.Registry, label domain.Label, fields []string) []string {
	var out []string
	for _, profile := range reg.ForLabel(label) {
		for _, field := range fields {
			for _, route := range profile.Routes[field] {
				out = append(out, route.Anchors...)
			}
		}
	}
	return out
}

func labelAnchors(reg *layout.Registry, label domain.Label) []string {
	var out []string
	for _, profile := range reg.ForLabel(label) {
		for _, anchor := range profile.Anchor {
			out = append(out, anchor.AnyOf...)
		}
	}
	return out
}

func containsAny(line string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(line, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
