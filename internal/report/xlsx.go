// Package report renders extraction accuracy runs as a spreadsheet for
// review outside the service.
package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// Row is one field comparison from an evaluation run.
type Row struct {
	Document string
	Label    string
	Field    string
	Expected string
	Got      string
	Route    string
	Match    bool
}

type fieldStats struct {
	total   int
	correct int
}

// BuildWorkbook produces a two-sheet workbook: per-field accuracy on
// Summary, every comparison on Details.
func BuildWorkbook(rows []Row) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet("Details"); err != nil {
		return nil, fmt.Errorf("create details sheet: %w", err)
	}

	if err := writeSummary(f, rows); err != nil {
		return nil, err
	}
	if err := writeDetails(f, rows); err != nil {
		return nil, err
	}
	return f, nil
}

// Write builds the workbook and saves it to path.
func Write(path string, rows []Row) error {
	f, err := BuildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, rows []Row) error {
	stats := make(map[string]*fieldStats)
	for _, row := range rows {
		key := row.Label + "\x00" + row.Field
		s, ok := stats[key]
		if !ok {
			s = &fieldStats{}
			stats[key] = s
		}
		s.total++
		if row.Match {
			s.correct++
		}
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := []any{"label", "field", "total", "correct", "accuracy"}
	if err := f.SetSheetRow("Summary", "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	for i, key := range keys {
		s := stats[key]
		label, field := splitKey(key)
		accuracy := 0.0
		if s.total > 0 {
			accuracy = float64(s.correct) / float64(s.total)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("summary cell: %w", err)
		}
		row := []any{label, field, s.total, s.correct, accuracy}
		if err := f.SetSheetRow("Summary", cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}

func writeDetails(f *excelize.File, rows []Row) error {
	header := []any{"document", "label", "field", "expected", "got", "route", "match"}
	if err := f.SetSheetRow("Details", "A1", &header); err != nil {
		return fmt.Errorf("write details header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("details cell: %w", err)
		}
		values := []any{row.Document, row.Label, row.Field, row.Expected, row.Got, row.Route, row.Match}
		if err := f.SetSheetRow("Details", cell, &values); err != nil {
			return fmt.Errorf("write details row: %w", err)
		}
	}
	return nil
}

func splitKey(key string) (label, field string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
