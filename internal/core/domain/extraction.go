package domain

import "time"

// Label identifies a supported document family.
type Label string

const (
	LabelCarteiraOAB Label = "carteira_oab"
	LabelTelaSistema Label = "tela_sistema"
)

// LayoutID names one of the known templates, or the flexible fallback mode.
type LayoutID string

const (
	LayoutV1       LayoutID = "v1"
	LayoutV2       LayoutID = "v2"
	LayoutV3       LayoutID = "v3"
	LayoutFlexible LayoutID = "flexible"
)

// RouteID names the method that resolved a field.
type RouteID string

const (
	RouteRegex  RouteID = "regex"
	RouteAnchor RouteID = "anchor"
	RouteLLM    RouteID = "llm"
	RouteNone   RouteID = "none"
)

// ExtractionRequest is the caller-facing request. Fields keeps the caller's
// original order; duplicates are collapsed during canonicalization.
type ExtractionRequest struct {
	Label    Label    `json:"label"`
	Fields   []string `json:"fields"`
	UseLLM   bool     `json:"use_llm"`
	Document []byte   `json:"-"`
}

// DocumentText is the text-source output for one document. Immutable after
// creation.
type DocumentText struct {
	Lines       []string
	OCRUsed     bool
	ContentHash string
}

// Text joins the page lines back into a single block.
func (d DocumentText) Text() string {
	out := ""
	for i, ln := range d.Lines {
		if i > 0 {
			out += "\n"
		}
		out += ln
	}
	return out
}

// FieldMatch is the outcome of resolving one requested field.
type FieldMatch struct {
	Field      string
	Raw        string
	Value      string
	Confidence float64
	Route      RouteID
	Layout     LayoutID
}

// Matched reports whether the field cleared the given confidence floor.
func (m FieldMatch) Matched(minConfidence float64) bool {
	return m.Value != "" && m.Confidence >= minConfidence
}

// CoverageReport carries the layout-detection scores and the coverage
// evolution across the pipeline.
type CoverageReport struct {
	PerLayout map[LayoutID]float64
	Selected  LayoutID
	Threshold float64
	Before    float64
	After     float64
}

// Debug is the always-produced decision trail. Visibility to callers is
// gated by the API layer, not here.
type Debug struct {
	LayoutFinal  LayoutID               `json:"layout_final"`
	Coverage     DebugCoverage          `json:"coverage"`
	PerLayout    map[LayoutID]float64   `json:"per_layout"`
	LLMRequested bool                   `json:"llm_requested"`
	LLMError     string                 `json:"llm_error,omitempty"`
	TextError    string                 `json:"text_error,omitempty"`
	OCRUsed      bool                   `json:"ocr_used"`
	PerField     map[string]DebugField  `json:"per_field"`
}

type DebugCoverage struct {
	Threshold float64 `json:"threshold"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
}

type DebugField struct {
	Route      RouteID `json:"route"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is the assembled response: values in the caller's
// requested order, every requested field present ("" when unmatched).
type ExtractionResult struct {
	Label  Label             `json:"label"`
	Keys   []string          `json:"keys"`
	Values map[string]string `json:"values"`
	Debug  Debug             `json:"debug"`
}

// CacheEntry is an immutable stored result. Expiry is evaluated on read.
type CacheEntry struct {
	Key       string
	Result    ExtractionResult
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry is stale at the given instant.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// ExtractionJob is the batch-queue payload consumed by the worker.
// SubmittedAt is stamped at publish time so the worker can report queue
// lag.
type ExtractionJob struct {
	Path        string    `json:"path"`
	Label       Label     `json:"label"`
	Fields      []string  `json:"fields,omitempty"`
	UseLLM      bool      `json:"use_llm"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}
