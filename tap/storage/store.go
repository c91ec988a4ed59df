// Package storage persists per-species pulse arrays between pipeline
// stages.
//
// A Store maps slash-separated keys to pulse.Array snapshots. Corrected
// snapshots are stored under the registry key ("28.0"); normalized ones
// under NormalizedKey ("normalized/28.0-i"). Writes are last-write-wins.
//
// Three backends are provided: an in-memory map, a directory of parquet
// files and an S3 bucket holding the same parquet objects.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// ErrNotFound is returned by Load for a missing key.
var ErrNotFound = fmt.Errorf("storage: snapshot not found: %w", pulse.ErrLookup)

// ErrInvalidKey is returned for keys that are empty or not a clean
// relative slash path.
var ErrInvalidKey = fmt.Errorf("storage: invalid key: %w", pulse.ErrValidation)

// NormalizedPrefix holds normalized snapshots.
const NormalizedPrefix = "normalized/"

// Store saves and loads pulse arrays by key.
type Store interface {
	Save(ctx context.Context, key string, a pulse.Array) error
	Load(ctx context.Context, key string) (pulse.Array, error)
	// List returns the keys starting with prefix in sorted order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Clear removes every snapshot.
	Clear(ctx context.Context) error
}

// NormalizedKey returns the key of the normalized snapshot of key.
func NormalizedKey(key string) string {
	return NormalizedPrefix + key + "-i"
}

// SourceKey reverses NormalizedKey. ok is false for keys outside the
// normalized prefix.
func SourceKey(normalized string) (key string, ok bool) {
	rest, found := strings.CutPrefix(normalized, NormalizedPrefix)
	if !found {
		return "", false
	}
	return strings.CutSuffix(rest, "-i")
}

func checkKey(key string) error {
	if key == "" || strings.ContainsRune(key, '\\') || strings.HasPrefix(key, "/") ||
		path.Clean(key) != key || key == ".." || strings.HasPrefix(key, "../") {
		return fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return nil
}

func copyArray(a pulse.Array) pulse.Array {
	out := make(pulse.Array, len(a))
	for i, r := range a {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
