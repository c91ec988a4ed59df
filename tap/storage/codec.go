package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/parquet-go/parquet-go"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// snapshotRow is one row of a pulse array in the parquet layout.
type snapshotRow struct {
	Row    int32     `parquet:"row"`
	Values []float64 `parquet:"values"`
}

// Encode serializes a as a zstd-compressed parquet file.
func Encode(a pulse.Array) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	rows := make([]snapshotRow, len(a))
	for i, r := range a {
		rows[i] = snapshotRow{Row: int32(i), Values: r}
	}

	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[snapshotRow](&buf, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads an array written by Encode.
func Decode(data []byte) (pulse.Array, error) {
	r := bytes.NewReader(data)
	// NewGenericReader panics on a malformed file; open it first to get an error.
	if _, err := parquet.OpenFile(r, r.Size()); err != nil {
		return nil, fmt.Errorf("%w: storage: decode: %w", pulse.ErrParse, err)
	}
	gr := parquet.NewGenericReader[snapshotRow](r)
	defer func() { _ = gr.Close() }()

	var rows []snapshotRow
	batch := make([]snapshotRow, 64)
	for {
		n, err := gr.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: storage: decode: %w", pulse.ErrParse, err)
		}
	}

	slices.SortFunc(rows, func(x, y snapshotRow) int { return int(x.Row) - int(y.Row) })
	a := make(pulse.Array, len(rows))
	for i, r := range rows {
		if int(r.Row) != i {
			return nil, fmt.Errorf("%w: storage: decode: row %d missing", pulse.ErrParse, i)
		}
		a[i] = r.Values
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("storage: decode: %w", err)
	}
	return a, nil
}
