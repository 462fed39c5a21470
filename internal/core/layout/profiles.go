// Package layout holds the immutable layout profiles and the detector that
// scores them against document text. Profiles are parsed once at process
// start and shared read-only across requests.
package layout

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/caiomeira/extractd/internal/core/domain"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Anchor is one expected evidence phrase for a profile. Position narrows
// where the phrase is expected ("top", "bottom", or "" for anywhere).
type Anchor struct {
	AnyOf    []string
	Position string
}

// ValueKind selects the value pattern an anchor or scan route extracts.
type ValueKind string

const (
	ValueText    ValueKind = "text"
	ValueLine    ValueKind = "line"
	ValueBlock   ValueKind = "block"
	ValueDate    ValueKind = "date"
	ValueMoney   ValueKind = "money"
	ValueInt     ValueKind = "int"
	ValueLongInt ValueKind = "long_int"
	ValueUF      ValueKind = "uf"
	ValuePhone   ValueKind = "phone"
	ValueChoice  ValueKind = "choice"
)

// Route is one compiled extraction attempt for a field. Kind is one of
// "regex" (full-text pattern), "anchor" (window after an anchor line),
// "scan" (document-wide value pattern) or "head" (first readable line).
type Route struct {
	Kind    string
	Pattern *regexp.Regexp
	Anchors []string
	Window  int
	Value   ValueKind
	Options []string
	Stop    []string
	Pick    string
	Lines   int
}

// Profile is one immutable layout template for a label.
type Profile struct {
	ID     domain.LayoutID
	Label  domain.Label
	Anchor []Anchor
	Routes map[string][]Route
}

// Registry holds every profile in declaration order (the tie-break order).
type Registry struct {
	profiles []Profile
}

type profileYAML struct {
	ID      string                 `yaml:"id"`
	Label   string                 `yaml:"label"`
	Anchors []anchorYAML           `yaml:"anchors"`
	Fields  map[string][]routeYAML `yaml:"fields"`
}

type anchorYAML struct {
	AnyOf    []string `yaml:"any_of"`
	Position string   `yaml:"position"`
}

type routeYAML struct {
	Route   string   `yaml:"route"`
	Pattern string   `yaml:"pattern"`
	Anchors []string `yaml:"anchors"`
	Window  int      `yaml:"window"`
	Value   string   `yaml:"value"`
	Options []string `yaml:"options"`
	Stop    []string `yaml:"stop"`
	Pick    string   `yaml:"pick"`
	Lines   int      `yaml:"lines"`
}

type fileYAML struct {
	Profiles []profileYAML `yaml:"profiles"`
}

// Load parses and compiles the embedded profile definitions.
func Load() (*Registry, error) {
	var raw fileYAML
	if err := yaml.Unmarshal(profilesYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse layout profiles: %w", err)
	}
	if len(raw.Profiles) == 0 {
		return nil, fmt.Errorf("layout profiles: empty definition")
	}

	reg := &Registry{}
	for _, p := range raw.Profiles {
		profile := Profile{
			ID:     domain.LayoutID(p.ID),
			Label:  domain.Label(p.Label),
			Routes: make(map[string][]Route, len(p.Fields)),
		}
		for _, a := range p.Anchors {
			profile.Anchor = append(profile.Anchor, Anchor{AnyOf: a.AnyOf, Position: a.Position})
		}
		for field, routes := range p.Fields {
			for _, r := range routes {
				route := Route{
					Kind:    r.Route,
					Anchors: r.Anchors,
					Window:  r.Window,
					Value:   ValueKind(r.Value),
					Options: r.Options,
					Stop:    r.Stop,
					Pick:    r.Pick,
					Lines:   r.Lines,
				}
				if r.Pattern != "" {
					compiled, err := regexp.Compile("(?i)" + r.Pattern)
					if err != nil {
						return nil, fmt.Errorf("compile route pattern for %s/%s.%s: %w", p.Label, p.ID, field, err)
					}
					route.Pattern = compiled
				}
				profile.Routes[field] = append(profile.Routes[field], route)
			}
		}
		reg.profiles = append(reg.profiles, profile)
	}
	return reg, nil
}

// MustLoad is Load for process bootstrap.
func MustLoad() *Registry {
	reg, err := Load()
	if err != nil {
		panic(err)
	}
	return reg
}

// ForLabel returns the profiles declared for a label, in tie-break order.
func (r *Registry) ForLabel(label domain.Label) []Profile {
	var out []Profile
	for _, p := range r.profiles {
		if p.Label == label {
			out = append(out, p)
		}
	}
	return out
}

// Profile returns a specific profile for a label.
func (r *Registry) Profile(label domain.Label, id domain.LayoutID) (Profile, bool) {
	for _, p := range r.ForLabel(label) {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}
