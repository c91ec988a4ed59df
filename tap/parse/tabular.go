package parse

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// Workbook layout of TAP-2/3 exports.
const (
	reservedSheets = 3
	timeColumn     = 2
	firstPulseCol  = 3
	valueHeader    = "Value"
)

// ParseTabular decodes a TAP-2/3 workbook. The first three sheets are
// reserved; each following sheet holds one species.
func ParseTabular(data []byte) ([]*pulse.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: tabular: %w", pulse.ErrParse, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) <= reservedSheets {
		return nil, fmt.Errorf("%w: tabular: %d sheets, no species after the first %d", pulse.ErrParse, len(sheets), reservedSheets)
	}

	species := sheets[reservedSheets:]
	out := make([]*pulse.Dataset, 0, len(species))
	for i, name := range species {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: tabular: sheet %q: %w", pulse.ErrParse, name, err)
		}
		d, err := parseSheet(rows, i)
		if err != nil {
			return nil, fmt.Errorf("%w: tabular: sheet %q: %w", pulse.ErrParse, name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// parseSheet converts one species sheet. The header row names the
// columns; column 2 is the time axis, the Value column lists amu, gain,
// collection time and pulse spacing, and every other column from 3 on is
// one pulse.
func parseSheet(rows [][]string, index int) (*pulse.Dataset, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}
	header := rows[0]
	valueCol := -1
	for c, h := range header {
		if strings.TrimSpace(h) == valueHeader {
			valueCol = c
			break
		}
	}
	if valueCol < 0 {
		return nil, fmt.Errorf("missing %q column", valueHeader)
	}

	var pulseCols []int
	for c := firstPulseCol; c < len(header); c++ {
		if c != valueCol {
			pulseCols = append(pulseCols, c)
		}
	}
	if len(pulseCols) == 0 {
		return nil, fmt.Errorf("no pulse columns")
	}

	var (
		values []float64
		times  []float64
		points [][]float64 // datapoint-major, transposed below
	)
	for r, row := range rows[1:] {
		if s := cell(row, valueCol); s != "" && len(values) < 4 {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s %q", r+2, valueHeader, s)
			}
			values = append(values, v)
		}

		ts := cell(row, timeColumn)
		if ts == "" {
			continue
		}
		t, err := strconv.ParseFloat(ts, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid time %q", r+2, ts)
		}

		sample := make([]float64, len(pulseCols))
		for j, c := range pulseCols {
			s := cell(row, c)
			if s == "" {
				return nil, fmt.Errorf("row %d: missing value in column %d", r+2, c+1)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid value %q in column %d", r+2, s, c+1)
			}
			sample[j] = v
		}
		times = append(times, t)
		points = append(points, sample)
	}

	if len(values) < 4 {
		return nil, fmt.Errorf("%s column has %d entries, need amu, gain, collection time and pulse spacing", valueHeader, len(values))
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("no time samples")
	}

	pulses := make([][]float64, len(pulseCols))
	for j := range pulses {
		p := make([]float64, len(points))
		for i, sample := range points {
			p[i] = sample[j]
		}
		pulses[j] = p
	}

	d := &pulse.Dataset{
		AMU:            values[0],
		Gain:           int(values[1]),
		CollectionTime: values[2],
		PulseSpacing:   values[3],
		Index:          index,
		NDatapoints:    len(times),
		NPulses:        len(pulses),
		Times:          times,
		Pulses:         pulses,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func cell(row []string, c int) string {
	if c < len(row) {
		return strings.TrimSpace(row[c])
	}
	return ""
}
