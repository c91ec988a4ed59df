package parse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// Kind identifies an input file format.
type Kind int

const (
	KindAuto Kind = iota
	KindRaw
	KindTabular
	KindSerialized
)

func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindRaw:
		return "raw"
	case KindTabular:
		return "tabular"
	case KindSerialized:
		return "serialized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name ("auto", "raw", "tabular", "serialized").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KindAuto, nil
	case "raw":
		return KindRaw, nil
	case "tabular", "xlsx":
		return KindTabular, nil
	case "serialized", "json":
		return KindSerialized, nil
	default:
		return KindAuto, fmt.Errorf("%w: unknown file kind %q", pulse.ErrParse, s)
	}
}

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectKind picks the file kind from content signatures, falling back to
// the file extension. Anything unrecognized is treated as raw.
func DetectKind(name string, data []byte) Kind {
	if bytes.HasPrefix(data, zipMagic) {
		return KindTabular
	}
	if bytes.HasPrefix(data, zstdMagic) {
		return KindSerialized
	}
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return KindSerialized
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return KindTabular
	case ".json", ".zst", ".pkl":
		return KindSerialized
	default:
		return KindRaw
	}
}

// Parse decodes data of the given kind. Raw and serialized inputs yield a
// single dataset; tabular inputs yield one dataset per species sheet.
func Parse(data []byte, kind Kind) ([]*pulse.Dataset, error) {
	switch kind {
	case KindRaw:
		d, err := ParseRaw(data)
		if err != nil {
			return nil, err
		}
		return []*pulse.Dataset{d}, nil
	case KindTabular:
		return ParseTabular(data)
	case KindSerialized:
		d, err := ParseSerialized(data)
		if err != nil {
			return nil, err
		}
		return []*pulse.Dataset{d}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file kind %v", pulse.ErrParse, kind)
	}
}

// File is one uploaded file.
type File struct {
	Name string
	Data []byte
	Kind Kind // KindAuto selects DetectKind
}

// FileError attaches the offending file name to a parse failure.
type FileError struct {
	Name string
	Kind Kind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Name, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ParseFile parses one file, detecting its kind when f.Kind is KindAuto.
func ParseFile(f File) ([]*pulse.Dataset, error) {
	kind := f.Kind
	if kind == KindAuto {
		kind = DetectKind(f.Name, f.Data)
	}
	ds, err := Parse(f.Data, kind)
	if err != nil {
		return nil, &FileError{Name: f.Name, Kind: kind, Err: err}
	}
	return ds, nil
}

// Batch parses files concurrently and returns their datasets ordered by
// file name, and within a workbook by sheet order. The first failure
// aborts the batch; no partial result is returned.
func Batch(ctx context.Context, files []File) ([]*pulse.Dataset, error) {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b File) int {
		return strings.Compare(a.Name, b.Name)
	})

	results := make([][]*pulse.Dataset, len(sorted))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, f := range sorted {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ds, err := ParseFile(f)
			if err != nil {
				return err
			}
			results[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*pulse.Dataset
	for _, ds := range results {
		out = append(out, ds...)
	}
	return out, nil
}

// IsFileError reports whether err carries a file identity and returns it.
func IsFileError(err error) (*FileError, bool) {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
