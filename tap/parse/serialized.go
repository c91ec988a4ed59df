package parse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// ParseSerialized decodes a JSON dataset snapshot, transparently
// decompressing zstd frames. Only structural shape checks are applied.
func ParseSerialized(data []byte) (*pulse.Dataset, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: serialized: %w", pulse.ErrParse, err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: serialized: %w", pulse.ErrParse, err)
		}
	}

	var d pulse.Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: serialized: %w", pulse.ErrParse, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: serialized: %w", pulse.ErrParse, err)
	}
	return &d, nil
}

// EncodeSerialized writes d as a zstd-compressed JSON snapshot readable by
// ParseSerialized.
func EncodeSerialized(d *pulse.Dataset) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("serialized: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("serialized: %w", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(raw, nil), nil
}
