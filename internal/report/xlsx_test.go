package report

import "testing"

func TestBuildWorkbookSummarizesAccuracy(t *testing.T) {
	rows := []Row{
		{Document: "a.pdf", Label: "carteira_oab", Field: "nome", Expected: "MARIA", Got: "MARIA", Route: "regex", Match: true},
		{Document: "b.pdf", Label: "carteira_oab", Field: "nome", Expected: "JOSE", Got: "", Route: "none", Match: false},
		{Document: "a.pdf", Label: "carteira_oab", Field: "inscricao", Expected: "123456", Got: "123456", Route: "regex", Match: true},
	}

	f, err := BuildWorkbook(rows)
	if err != nil {
		t.Fatalf("BuildWorkbook() error = %v", err)
	}
	defer f.Close()

	// Sorted by label then field: inscricao before nome.
	field, err := f.GetCellValue("Summary", "B2")
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if field != "inscricao" {
		t.Fatalf("expected inscricao first, got %q", field)
	}

	accuracy, err := f.GetCellValue("Summary", "E3")
	if err != nil {
		t.Fatalf("read accuracy: %v", err)
	}
	if accuracy != "0.5" {
		t.Fatalf("expected nome accuracy 0.5, got %q", accuracy)
	}

	got, err := f.GetCellValue("Details", "E3")
	if err != nil {
		t.Fatalf("read details: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty got cell for miss, got %q", got)
	}
}
