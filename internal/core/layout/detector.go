package layout

import (
	"strings"

	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/normalize"
)

// headWindow bounds how many lines count as the "top" of a single page,
// and tailWindow the "bottom".
const (
	headWindow = 8
	tailWindow = 12
)

// Detect scores every profile declared for the label against the document
// and selects one. If the best score stays below the threshold the flexible
// mode is selected, under which the resolver walks all profiles. Zero
// matched anchors is not an error; flexible is always a safe fallback.
func Detect(reg *Registry, lines []string, label domain.Label, threshold float64) domain.CoverageReport {
	folded := FoldLines(lines)

	report := domain.CoverageReport{
		PerLayout: make(map[domain.LayoutID]float64),
		Selected:  domain.LayoutFlexible,
		Threshold: threshold,
	}

	best := -1.0
	for _, profile := range reg.ForLabel(label) {
		score := scoreProfile(profile, folded)
		report.PerLayout[profile.ID] = score
		// Strict > keeps declaration order as the tie-break.
		if score > best {
			best = score
			report.Selected = profile.ID
		}
	}

	if best < threshold {
		report.Selected = domain.LayoutFlexible
	}
	return report
}

func scoreProfile(profile Profile, folded []string) float64 {
	if len(profile.Anchor) == 0 {
		return 0
	}
	matched := 0
	for _, anchor := range profile.Anchor {
		if anchorPresent(anchor, folded) {
			matched++
		}
	}
	return float64(matched) / float64(len(profile.Anchor))
}

func anchorPresent(anchor Anchor, folded []string) bool {
	start, end := 0, len(folded)
	switch anchor.Position {
	case "top":
		if end > headWindow {
			end = headWindow
		}
	case "bottom":
		if end > tailWindow {
			start = end - tailWindow
		}
	}
	for i := start; i < end; i++ {
		for _, phrase := range anchor.AnyOf {
			if strings.Contains(folded[i], phrase) {
				return true
			}
		}
	}
	return false
}

// FoldLines produces the tolerant match form of the page: accents stripped,
// whitespace collapsed, lowercased, one entry per original line.
func FoldLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, ln := range lines {
		out[i] = normalize.MatchKey(ln)
	}
	return out
}
