// Package resolve implements the multi-route field resolver: an explicit
// ordered list of tagged routes evaluated in sequence per field, each
// producing a structured outcome instead of raising.
package resolve

import (
	"regexp"
	"strings"

	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/layout"
	"github.com/caiomeira/extractd/internal/core/normalize"
)

// Route confidence scores. Anything at or above the per-field minimum is
// accepted; scan routes sit just above the default floor so explicit
// matches always win over document-wide sweeps.
const (
	confRegex  = 0.90
	confAnchor = 0.70
	confHead   = 0.60
	confScan   = 0.55
)

var (
	reDate    = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	reMoney   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})*,\d{2}\b`)
	reInt     = regexp.MustCompile(`\b\d{1,3}\b`)
	reLongInt = regexp.MustCompile(`\b\d{5,7}\b`)
	rePhone   = regexp.MustCompile(`\(?\d{2}\)?\s?\d{4,5}-?\d{4}`)
	reUF      = regexp.MustCompile(`(?i)\b(AC|AL|AP|AM|BA|CE|DF|ES|GO|MA|MG|MS|MT|PA|PB|PE|PI|PR|RJ|RN|RO|RR|RS|SC|SE|SP|TO)\b`)
	reDigits  = regexp.MustCompile(`\D`)
	reLetter  = regexp.MustCompile(`\pL`)
)

type Resolver struct {
	reg           *layout.Registry
	minConfidence float64
}

func New(reg *layout.Registry, minConfidence float64) *Resolver {
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	return &Resolver{reg: reg, minConfidence: minConfidence}
}

// MinConfidence is the per-field acceptance floor.
func (r *Resolver) MinConfidence() float64 { return r.minConfidence }

// document is the folded view of one page, prepared once per resolution.
type document struct {
	lines []string // accent-folded, whitespace-collapsed, case preserved
	lower []string // lowercase form of lines, for anchor containment
	text  string   // lines joined with \n
}

func prepare(lines []string) document {
	doc := document{
		lines: make([]string, len(lines)),
		lower: make([]string, len(lines)),
	}
	for i, ln := range lines {
		folded := normalize.Collapse(normalize.FoldAccents(ln))
		doc.lines[i] = folded
		doc.lower[i] = strings.ToLower(folded)
	}
	doc.text = strings.Join(doc.lines, "\n")
	return doc
}

// Resolve attempts the ordered route list for every requested field. Under
// a selected layout only that profile's routes run; under flexible mode the
// routes of every profile for the label run in declaration order, first
// success wins. Pure function of text + fields + layout.
func (r *Resolver) Resolve(label domain.Label, fields []string, lines []string, selected domain.LayoutID) []domain.FieldMatch {
	doc := prepare(lines)

	var profiles []layout.Profile
	if selected == domain.LayoutFlexible {
		profiles = r.reg.ForLabel(label)
	} else if p, ok := r.reg.Profile(label, selected); ok {
		profiles = []layout.Profile{p}
	}

	resolved := make(map[string]domain.FieldMatch, len(fields))
	matches := make([]domain.FieldMatch, 0, len(fields))
	for _, field := range fields {
		match := r.resolveField(field, doc, profiles, resolved)
		resolved[field] = match
		matches = append(matches, match)
	}
	return matches
}

func (r *Resolver) resolveField(field string, doc document, profiles []layout.Profile, resolved map[string]domain.FieldMatch) domain.FieldMatch {
	for _, profile := range profiles {
		for _, route := range profile.Routes[field] {
			raw, routeID, confidence := evalRoute(route, doc)
			raw = guard(field, raw, resolved)
			if raw == "" || confidence < r.minConfidence {
				continue
			}
			return domain.FieldMatch{
				Field:      field,
				Raw:        raw,
				Value:      normalize.Field(field, raw),
				Confidence: confidence,
				Route:      routeID,
				Layout:     profile.ID,
			}
		}
	}
	return domain.FieldMatch{Field: field, Route: domain.RouteNone}
}

func evalRoute(route layout.Route, doc document) (string, domain.RouteID, float64) {
	switch route.Kind {
	case "regex":
		return evalRegex(route, doc), domain.RouteRegex, confRegex
	case "anchor":
		return evalAnchor(route, doc), domain.RouteAnchor, confAnchor
	case "scan":
		return evalScan(route, doc), domain.RouteRegex, confScan
	case "head":
		return evalHead(route, doc), domain.RouteAnchor, confHead
	default:
		return "", domain.RouteNone, 0
	}
}

func evalRegex(route layout.Route, doc document) string {
	if route.Pattern == nil {
		return ""
	}
	m := route.Pattern.FindStringSubmatch(doc.text)
	if m == nil {
		return ""
	}
	value := m[0]
	if len(m) > 1 && m[1] != "" {
		value = m[1]
	}
	return strings.TrimSpace(cutAtStops(value, route.Stop))
}

func evalAnchor(route layout.Route, doc document) string {
	idx := findAnchorLine(doc, route.Anchors)
	if idx < 0 {
		return ""
	}
	switch route.Value {
	case layout.ValueLine:
		return doc.lines[idx]
	case layout.ValueText:
		return anchorText(route, doc, idx)
	case layout.ValueBlock:
		return anchorBlock(route, doc, idx)
	case layout.ValueChoice:
		return choiceIn(windowText(doc, idx-1, idx+route.Window), route.Options)
	default:
		return valueAfterLabel(valuePattern(route.Value), doc, idx, route.Window)
	}
}

func evalScan(route layout.Route, doc document) string {
	if route.Value == layout.ValueChoice {
		return choiceIn(doc.text, route.Options)
	}
	pattern := valuePattern(route.Value)
	if pattern == nil {
		return ""
	}
	all := pattern.FindAllString(doc.text, -1)
	if len(all) == 0 {
		return ""
	}
	switch route.Pick {
	case "second":
		if len(all) < 2 {
			return ""
		}
		return all[1]
	case "last":
		return all[len(all)-1]
	default:
		return all[0]
	}
}

// evalHead picks the first plausible free-text line near the top of the
// page (names on license cards sit above any labeled field).
func evalHead(route layout.Route, doc document) string {
	limit := route.Lines
	if limit <= 0 {
		limit = 6
	}
	if limit > len(doc.lines) {
		limit = len(doc.lines)
	}
	for i := 0; i < limit; i++ {
		ln := doc.lines[i]
		if len(ln) >= 3 && reLetter.MatchString(ln) {
			return ln
		}
	}
	return ""
}

func findAnchorLine(doc document, anchors []string) int {
	for i, ln := range doc.lower {
		for _, a := range anchors {
			if strings.Contains(ln, strings.ToLower(a)) {
				return i
			}
		}
	}
	return -1
}

// anchorText prefers the tail after ":" on the anchor line, then the next
// line inside the window.
func anchorText(route layout.Route, doc document, idx int) string {
	line := doc.lines[idx]
	if i := strings.Index(line, ":"); i >= 0 {
		if tail := strings.TrimSpace(line[i+1:]); tail != "" {
			return strings.TrimSpace(cutAtStops(tail, route.Stop))
		}
	}
	if route.Window >= 1 && idx+1 < len(doc.lines) {
		return strings.TrimSpace(cutAtStops(doc.lines[idx+1], route.Stop))
	}
	return ""
}

// anchorBlock joins the lines after the anchor until a stop phrase or the
// window runs out (addresses span several short lines).
func anchorBlock(route layout.Route, doc document, idx int) string {
	var parts []string
	if line := doc.lines[idx]; strings.Contains(line, ":") {
		if tail := strings.TrimSpace(line[strings.Index(line, ":")+1:]); tail != "" {
			parts = append(parts, tail)
		}
	}
	limit := idx + 1 + route.Window
	if limit > len(doc.lines) {
		limit = len(doc.lines)
	}
collect:
	for j := idx + 1; j < limit; j++ {
		for _, stop := range route.Stop {
			if strings.Contains(doc.lower[j], strings.ToLower(stop)) {
				break collect
			}
		}
		if doc.lines[j] != "" {
			parts = append(parts, doc.lines[j])
		}
	}
	return strings.TrimSpace(cutAtStops(strings.Join(parts, " "), route.Stop))
}

// valueAfterLabel extracts a typed value preferring the text after ":" on
// the anchor line, then the whole line, then the window below it.
func valueAfterLabel(pattern *regexp.Regexp, doc document, idx, window int) string {
	if pattern == nil {
		return ""
	}
	line := doc.lines[idx]
	if i := strings.Index(line, ":"); i >= 0 {
		if m := pattern.FindString(line[i+1:]); m != "" {
			return m
		}
	}
	if m := pattern.FindString(line); m != "" {
		return m
	}
	if window > 0 {
		if m := pattern.FindString(windowText(doc, idx+1, idx+window)); m != "" {
			return m
		}
	}
	return ""
}

func windowText(doc document, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to >= len(doc.lines) {
		to = len(doc.lines) - 1
	}
	if from > to {
		return ""
	}
	return strings.Join(doc.lines[from:to+1], " ")
}

func valuePattern(kind layout.ValueKind) *regexp.Regexp {
	switch kind {
	case layout.ValueDate:
		return reDate
	case layout.ValueMoney:
		return reMoney
	case layout.ValueInt:
		return reInt
	case layout.ValueLongInt:
		return reLongInt
	case layout.ValueUF:
		return reUF
	case layout.ValuePhone:
		return rePhone
	default:
		return nil
	}
}

func choiceIn(text string, options []string) string {
	lower := strings.ToLower(text)
	for _, opt := range options {
		if strings.Contains(lower, strings.ToLower(opt)) {
			return strings.ToUpper(opt[:1]) + opt[1:]
		}
	}
	return ""
}

// cutAtStops truncates a captured value at the first occurrence of any stop
// phrase, so labels that share a line never bleed into each other.
func cutAtStops(value string, stops []string) string {
	lower := strings.ToLower(value)
	cut := len(value)
	for _, stop := range stops {
		if i := strings.Index(lower, strings.ToLower(stop)); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.Trim(value[:cut], " |-:;")
}

// guard applies field-specific rejection rules that a generic route cannot
// express. A rejected value falls through to the next route.
func guard(field, value string, resolved map[string]domain.FieldMatch) string {
	if value == "" || field != "subsecao" {
		return value
	}
	digits := reDigits.ReplaceAllString(value, "")
	if digits == value || !reLetter.MatchString(value) {
		return ""
	}
	if insc, ok := resolved["inscricao"]; ok && insc.Raw != "" {
		if digits != "" && digits == reDigits.ReplaceAllString(insc.Raw, "") {
			return ""
		}
	}
	return value
}
