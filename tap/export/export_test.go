package export

import (
	"bytes"
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/cwbudde/algo-tap/internal/testutil"
	"github.com/cwbudde/algo-tap/tap/pulse"
)

func sampleArray(t *testing.T, amu float64, nPulses, nPoints int) pulse.Array {
	t.Helper()
	a, err := testutil.Dataset(amu, nPulses, nPoints, 1).Array(pulse.VariantRaw)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestToTable(t *testing.T) {
	a, err := pulse.NewArray(28, []float64{0, 1, 2}, [][]float64{{1, 2, 3}, {3, 4, 5}})
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := ToTable("28.0", a)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.AMU != 28 || tbl.Key != "28.0" {
		t.Fatalf("label = %q / %g", tbl.Key, tbl.AMU)
	}
	if !slices.Equal(tbl.Columns, []string{"Time", "Avg", "pulse_1", "pulse_2"}) {
		t.Fatalf("columns = %v", tbl.Columns)
	}
	want := [][]float64{
		{0, 2, 1, 3},
		{1, 3, 2, 4},
		{2, 4, 3, 5},
	}
	testutil.RequireMatrixNearlyEqual(t, tbl.Rows, want, 0)

	if _, err := ToTable("x", pulse.Array{{1}, {0}}); !errors.Is(err, pulse.ErrShape) {
		t.Fatalf("error = %v, want ErrShape", err)
	}
}

func TestFilenames(t *testing.T) {
	if got := Filename(28.04); got != "AMU=28.0.xlsx" {
		t.Fatalf("Filename = %q", got)
	}
	if got := NormalizedFilename("40.0"); got != "40.0-inert-normalized.xlsx" {
		t.Fatalf("NormalizedFilename = %q", got)
	}
}

func readSheet(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func sheetList(t *testing.T, data []byte) []string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	return f.GetSheetList()
}

func TestWriteWorkbook(t *testing.T) {
	tbl, err := ToTable("2.0", sampleArray(t, 2, 3, 40))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, tbl); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	if got := sheetList(t, buf.Bytes()); !slices.Equal(got, []string{SheetName}) {
		t.Fatalf("sheets = %v", got)
	}
	rows := readSheet(t, buf.Bytes(), SheetName)
	if len(rows) != 41 {
		t.Fatalf("got %d rows, want header + 40", len(rows))
	}
	if !slices.Equal(rows[0], tbl.Columns) {
		t.Fatalf("header = %v", rows[0])
	}
	for r := 1; r < len(rows); r++ {
		for c, s := range rows[r] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				t.Fatalf("row %d col %d: %v", r, c, err)
			}
			if v != tbl.Rows[r-1][c] {
				t.Fatalf("row %d col %d = %v, want %v", r, c, v, tbl.Rows[r-1][c])
			}
		}
	}
}

func TestWriteNormalizedWorkbook(t *testing.T) {
	var tables []Table
	for _, in := range []struct {
		key string
		amu float64
	}{
		{"40.0", 40},
		{"28.0-2", 28.049},
		{"2.0", 2},
		{"28.0", 28.04},
	} {
		tbl, err := ToTable(in.key, sampleArray(t, in.amu, 2, 10))
		if err != nil {
			t.Fatal(err)
		}
		tables = append(tables, tbl)
	}

	var buf bytes.Buffer
	if err := WriteNormalizedWorkbook(&buf, tables); err != nil {
		t.Fatalf("WriteNormalizedWorkbook: %v", err)
	}
	want := []string{"2.0", "28.0", "28.0-2", "40.0"}
	if got := sheetList(t, buf.Bytes()); !slices.Equal(got, want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	if rows := readSheet(t, buf.Bytes(), "40.0"); len(rows) != 11 {
		t.Fatalf("40.0 has %d rows, want 11", len(rows))
	}

	if err := WriteNormalizedWorkbook(&buf, nil); !errors.Is(err, pulse.ErrShape) {
		t.Fatalf("empty: error = %v", err)
	}
	if err := WriteNormalizedWorkbook(&buf, []Table{tables[0], tables[0]}); !errors.Is(err, pulse.ErrValidation) {
		t.Fatalf("duplicate: error = %v", err)
	}
}
