package parse

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cwbudde/algo-tap/internal/testutil"
	"github.com/cwbudde/algo-tap/tap/pulse"
)

func TestSerializedRoundTrip(t *testing.T) {
	src := testutil.Dataset(40, 3, 64, 2, 1, 0.5, 0.25)
	src = src.WithVariant(pulse.VariantSmooth, src.Pulses)

	data, err := EncodeSerialized(src)
	if err != nil {
		t.Fatalf("EncodeSerialized: %v", err)
	}
	if k := DetectKind("snapshot.bin", data); k != KindSerialized {
		t.Fatalf("DetectKind = %v, want serialized", k)
	}

	d, err := ParseSerialized(data)
	if err != nil {
		t.Fatalf("ParseSerialized: %v", err)
	}
	if d.Key() != "40.0" || d.NPulses != 3 || d.NDatapoints != 64 {
		t.Fatalf("decoded = %+v", d)
	}
	testutil.RequireMatrixNearlyEqual(t, d.Pulses, src.Pulses, 0)
	if _, ok := d.Variant(pulse.VariantSmooth); !ok {
		t.Fatal("smooth variant lost in round trip")
	}
}

func TestParseSerializedPlainJSON(t *testing.T) {
	src := testutil.Dataset(4, 2, 8, 1)
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatal(err)
	}
	d, err := ParseSerialized(data)
	if err != nil {
		t.Fatalf("ParseSerialized: %v", err)
	}
	if d.Key() != "4.0" {
		t.Fatalf("Key = %q", d.Key())
	}
}

func TestParseSerializedErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "{not json"},
		{"bad zstd frame", "\x28\xb5\x2f\xfd\x00\x00"},
		{"shape mismatch", `{"amu":2,"n_datapoints":3,"n_pulses":1,"times":[0,1,2],"pulses":[[1,2]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSerialized([]byte(tt.data)); !errors.Is(err, pulse.ErrParse) {
				t.Fatalf("error = %v, want ErrParse", err)
			}
		})
	}
}
