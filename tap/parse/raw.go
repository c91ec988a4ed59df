package parse

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// Token positions of the raw TAP-1 metadata block.
const (
	rawNDatapoints    = 3
	rawCollectionTime = 5
	rawGain           = 6
	rawNPulses        = 7
	rawAMUFactor      = 13
	rawPulseSpacing   = 15
	rawIndex          = 16
	rawPulseStart     = 18
)

// amuScale converts the stored AMU factor to the species AMU.
const amuScale = 30

// ParseRaw decodes a TAP-1 raw file. The first line is a header and is
// skipped; everything after it is a stream of whitespace-separated numbers
// where '#' starts a comment.
func ParseRaw(data []byte) (*pulse.Dataset, error) {
	tokens, err := rawTokens(data)
	if err != nil {
		return nil, err
	}
	if len(tokens) < rawPulseStart {
		return nil, fmt.Errorf("%w: raw: %d tokens, metadata needs %d", pulse.ErrParse, len(tokens), rawPulseStart)
	}

	nPoints := int(tokens[rawNDatapoints])
	nPulses := int(tokens[rawNPulses])
	if nPoints <= 0 || nPulses <= 0 {
		return nil, fmt.Errorf("%w: raw: invalid layout %d pulses x %d datapoints", pulse.ErrParse, nPulses, nPoints)
	}

	body := tokens[rawPulseStart:]
	if nPulses > len(body)/nPoints {
		return nil, fmt.Errorf("%w: raw: %d pulse values, layout %d x %d needs %d",
			pulse.ErrParse, len(body), nPulses, nPoints, nPulses*nPoints)
	}

	pulses := make([][]float64, nPulses)
	for i := range pulses {
		pulses[i] = body[i*nPoints : (i+1)*nPoints : (i+1)*nPoints]
	}

	ct := tokens[rawCollectionTime]
	d := &pulse.Dataset{
		AMU:            tokens[rawAMUFactor] * amuScale,
		Gain:           int(tokens[rawGain]),
		CollectionTime: ct,
		PulseSpacing:   tokens[rawPulseSpacing],
		Index:          int(tokens[rawIndex]),
		NDatapoints:    nPoints,
		NPulses:        nPulses,
		Times:          pulse.Linspace(0, ct, nPoints),
		Pulses:         pulses,
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: raw: %w", pulse.ErrParse, err)
	}
	return d, nil
}

func rawTokens(data []byte) ([]float64, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		out  []float64
		line int
	)
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		for _, field := range strings.Fields(text) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: raw: line %d: invalid number %q", pulse.ErrParse, line, field)
			}
			out = append(out, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: raw: %w", pulse.ErrParse, err)
	}
	return out, nil
}
