// Package schema declares the known field supersets per label and the
// canonicalization rules applied to incoming requests.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/caiomeira/extractd/internal/core/domain"
)

// Supersets hold every known field name per label, in canonical declared
// order. An empty request resolves to the full superset in this order.
var supersets = map[domain.Label][]string{
	domain.LabelCarteiraOAB: {
		"nome",
		"inscricao",
		"seccional",
		"subsecao",
		"categoria",
		"endereco_profissional",
		"telefone_profissional",
		"situacao",
	},
	domain.LabelTelaSistema: {
		"data_base",
		"data_vencimento",
		"quantidade_parcelas",
		"produto",
		"sistema",
		"tipo_de_operacao",
		"tipo_de_sistema",
		"pesquisa_por",
		"pesquisa_tipo",
		"valor_parcela",
		"cidade",
		"data_referencia",
		"selecao_de_parcelas",
		"total_de_parcelas",
	},
}

// Aliases map historical request keys to canonical field names. The typo
// data_verncimento shipped in early clients and must keep working.
var aliases = map[domain.Label]map[string]string{
	domain.LabelTelaSistema: {
		"data_verncimento": "data_vencimento",
	},
	domain.LabelCarteiraOAB: {},
}

// Request is a canonicalized field request: Canonical keeps the caller's
// order with aliases applied and duplicates collapsed; Requested keeps the
// caller's original keys for the response projection.
type Request struct {
	Label     domain.Label
	Requested []string
	Canonical []string
	toCanon   map[string]string
}

// Canonicalize validates the label and field list and resolves aliases.
// An empty field list means the full superset for the label.
func Canonicalize(label domain.Label, fields []string) (Request, error) {
	superset, ok := supersets[label]
	if !ok {
		return Request{}, domain.WrapError(domain.ErrUnsupportedLabel, "canonicalize schema",
			fmt.Errorf("label %q", label))
	}

	if len(fields) == 0 {
		fields = superset
	}

	known := make(map[string]bool, len(superset))
	for _, f := range superset {
		known[f] = true
	}
	aliasMap := aliases[label]

	req := Request{
		Label:   label,
		toCanon: make(map[string]string, len(fields)),
	}
	seen := make(map[string]bool, len(fields))
	for _, orig := range fields {
		name := strings.TrimSpace(orig)
		if name == "" {
			return Request{}, domain.WrapError(domain.ErrInvalidSchema, "canonicalize schema",
				errors.New("empty field name"))
		}
		canon := name
		if mapped, ok := aliasMap[name]; ok {
			canon = mapped
		}
		if !known[canon] {
			return Request{}, domain.WrapError(domain.ErrInvalidSchema, "canonicalize schema",
				fmt.Errorf("field %q is not part of label %q", name, label))
		}
		req.toCanon[name] = canon
		if seen[canon] {
			continue
		}
		seen[canon] = true
		req.Requested = append(req.Requested, name)
		req.Canonical = append(req.Canonical, canon)
	}
	return req, nil
}

// Canonicalized returns the request reduced to canonical keys only, the
// form results are cached under.
func (r Request) Canonicalized() Request {
	out := Request{
		Label:     r.Label,
		Requested: append([]string(nil), r.Canonical...),
		Canonical: append([]string(nil), r.Canonical...),
		toCanon:   make(map[string]string, len(r.Canonical)),
	}
	for _, name := range r.Canonical {
		out.toCanon[name] = name
	}
	return out
}

// CanonicalFor returns the canonical name for one of the originally
// requested keys.
func (r Request) CanonicalFor(requested string) string {
	if canon, ok := r.toCanon[requested]; ok {
		return canon
	}
	return requested
}

// Signature is the order-independent cache identity of the request:
// sorted, deduplicated canonical field names, label-scoped by the caller.
func (r Request) Signature() string {
	keys := append([]string(nil), r.Canonical...)
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// Superset returns the declared field order for a label.
func Superset(label domain.Label) ([]string, bool) {
	fields, ok := supersets[label]
	return fields, ok
}
