package layout

import (
	"testing"

	"github.com/caiomeira/extractd/internal/core/domain"
)

func TestDetectSelectsFullyAnchoredProfile(t *testing.T) {
	reg := MustLoad()
	lines := []string{
		"ORDEM DOS ADVOGADOS DO BRASIL",
		"Identidade de Advogado",
		"Inscrição: 123456",
		"Conselho Seccional: SP",
		"Subseção: CAMPINAS",
		"Categoria: ADVOGADA",
		"Endereço Profissional: Rua das Flores, 100",
		"Telefone: (19) 99876-5432",
		"Situação: REGULAR",
	}

	report := Detect(reg, lines, domain.LabelCarteiraOAB, 0.90)
	if report.Selected != domain.LayoutV1 {
		t.Fatalf("expected v1 selected, got %s (scores %v)", report.Selected, report.PerLayout)
	}
	if report.PerLayout[domain.LayoutV1] != 1.0 {
		t.Fatalf("expected full anchor score, got %v", report.PerLayout[domain.LayoutV1])
	}
}

func TestDetectFallsBackToFlexibleBelowThreshold(t *testing.T) {
	reg := MustLoad()
	// Three of the five v2 anchors.
	lines := []string{
		"Pesquisar por: contrato",
		"Tipo: consignado",
		"Cidade: campinas (sp)",
	}

	report := Detect(reg, lines, domain.LabelTelaSistema, 0.90)
	if report.Selected != domain.LayoutFlexible {
		t.Fatalf("expected flexible fallback, got %s", report.Selected)
	}
	if got := report.PerLayout[domain.LayoutV2]; got != 0.6 {
		t.Fatalf("expected v2 score 0.6, got %v", got)
	}
}

func TestDetectMatchesAccentedAnchors(t *testing.T) {
	reg := MustLoad()
	lines := []string{
		"Detalhamento de Saldos por Parcelas",
		"Referência: 05/06/2024",
		"Seleção de Parcelas: vencidas",
		"Total Geral",
	}

	report := Detect(reg, lines, domain.LabelTelaSistema, 0.90)
	if report.Selected != domain.LayoutV3 {
		t.Fatalf("expected v3 selected, got %s (scores %v)", report.Selected, report.PerLayout)
	}
}

func TestDetectEmptyDocumentIsFlexibleNotError(t *testing.T) {
	reg := MustLoad()

	report := Detect(reg, nil, domain.LabelTelaSistema, 0.90)
	if report.Selected != domain.LayoutFlexible {
		t.Fatalf("expected flexible for empty page, got %s", report.Selected)
	}
	for id, score := range report.PerLayout {
		if score != 0 {
			t.Fatalf("expected zero score for %s, got %v", id, score)
		}
	}
}

func TestTopAnchorOutsideHeadWindowDoesNotCount(t *testing.T) {
	reg := MustLoad()
	lines := make([]string, 0, 12)
	for i := 0; i < 10; i++ {
		lines = append(lines, "linha de preenchimento")
	}
	// Beyond the head window, so the position=top anchor must not match.
	lines = append(lines, "ORDEM DOS ADVOGADOS DO BRASIL")

	report := Detect(reg, lines, domain.LabelCarteiraOAB, 0.90)
	if got := report.PerLayout[domain.LayoutV1]; got != 0 {
		t.Fatalf("expected zero score with header below head window, got %v", got)
	}
}
