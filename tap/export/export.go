// Package export reshapes final pulse arrays into tables and writes them
// as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/cwbudde/algo-tap/tap/pulse"
	"github.com/cwbudde/algo-tap/tap/registry"
)

// SheetName is the sheet of a single-species workbook.
const SheetName = "Pulses"

// Table is one species laid out for a spreadsheet: one row per time
// sample, columns Time, Avg, pulse_1 .. pulse_k.
type Table struct {
	Key     string
	AMU     float64
	Columns []string
	Rows    [][]float64
}

// ToTable transposes a final array. The constant AMU row becomes the
// table's AMU label instead of a column.
func ToTable(key string, a pulse.Array) (Table, error) {
	if err := a.Validate(); err != nil {
		return Table{}, fmt.Errorf("export: %s: %w", key, err)
	}

	src := a[1:] // time, avg, pulses
	cols := make([]string, len(src))
	cols[0], cols[1] = "Time", "Avg"
	for i := 2; i < len(cols); i++ {
		cols[i] = "pulse_" + strconv.Itoa(i-1)
	}

	n := a.NDatapoints()
	rows := make([][]float64, n)
	for j := range rows {
		r := make([]float64, len(src))
		for i, s := range src {
			r[i] = s[j]
		}
		rows[j] = r
	}
	return Table{Key: key, AMU: a.AMU(), Columns: cols, Rows: rows}, nil
}

// Filename is the download name of a single-species workbook.
func Filename(amu float64) string {
	return "AMU=" + pulse.Key(amu) + ".xlsx"
}

// NormalizedFilename is the download name of the normalized workbook.
func NormalizedFilename(inert string) string {
	return inert + "-inert-normalized.xlsx"
}

// WriteWorkbook writes t as a one-sheet workbook.
func WriteWorkbook(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := writeSheet(f, SheetName, t); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// WriteNormalizedWorkbook writes one sheet per table, ordered by key and
// named by the formatted AMU. When two tables format to the same AMU the
// later one is named by its key.
func WriteNormalizedWorkbook(w io.Writer, tables []Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("%w: export: no tables", pulse.ErrShape)
	}
	byKey := make(map[string]Table, len(tables))
	keys := make([]string, 0, len(tables))
	for _, t := range tables {
		if _, dup := byKey[t.Key]; dup {
			return fmt.Errorf("%w: export: duplicate table key %q", pulse.ErrValidation, t.Key)
		}
		byKey[t.Key] = t
		keys = append(keys, t.Key)
	}
	registry.SortKeys(keys)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	used := make(map[string]bool, len(keys))
	for i, k := range keys {
		t := byKey[k]
		name := pulse.Key(t.AMU)
		if used[name] {
			name = k
		}
		used[name] = true

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export: sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, t); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("export: sheet %q: %w", sheet, err)
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("export: sheet %q: %w", sheet, err)
	}

	row := make([]any, len(t.Columns))
	for r, values := range t.Rows {
		if len(values) != len(t.Columns) {
			return fmt.Errorf("%w: export: row %d has %d values, %d columns",
				pulse.ErrShape, r, len(values), len(t.Columns))
		}
		for i, v := range values {
			row[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("export: sheet %q: %w", sheet, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: sheet %q: %w", sheet, err)
	}
	return nil
}
