// Package registry holds the keyed collection of parsed pulse datasets
// owned by one session.
//
// A Registry is an immutable value: Register returns a new registry and
// never modifies the one it was given, so two sessions (or two attempts
// within one session) can never observe each other's updates.
//
// Keys are the dataset AMU formatted with one decimal ("28.0"). When a
// key is already taken the dataset receives the suffix "-n", where n is
// the smallest unused number >= 2 among the keys sharing that base:
//
//	28.04  -> "28.0"
//	28.049 -> "28.0-2"
//	28.01  -> "28.0-3"
package registry

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// Registry maps keys to datasets. The zero value is an empty registry.
type Registry struct {
	entries map[string]*pulse.Dataset
}

// Register validates every dataset and returns a new registry containing
// reg's entries plus the datasets, along with the keys assigned to them
// in input order. Nothing is assigned when any dataset is invalid.
func Register(reg Registry, datasets ...*pulse.Dataset) (Registry, []string, error) {
	for i, d := range datasets {
		if d == nil {
			return reg, nil, fmt.Errorf("%w: registry: dataset %d is nil", pulse.ErrValidation, i)
		}
		if err := d.Validate(); err != nil {
			return reg, nil, fmt.Errorf("registry: dataset %d (amu %s): %w", i, d.Key(), err)
		}
	}

	next := Registry{entries: make(map[string]*pulse.Dataset, len(reg.entries)+len(datasets))}
	for k, d := range reg.entries {
		next.entries[k] = d
	}

	keys := make([]string, len(datasets))
	for i, d := range datasets {
		k := next.freeKey(d.Key())
		next.entries[k] = d
		keys[i] = k
	}
	return next, keys, nil
}

// freeKey returns base when it is unused, otherwise base with the
// smallest free suffix >= 2.
func (r Registry) freeKey(base string) string {
	if _, taken := r.entries[base]; !taken {
		return base
	}
	used := make(map[int]bool)
	for k := range r.entries {
		if b, n := splitKey(k); b == base && n > 0 {
			used[n] = true
		}
	}
	n := 2
	for used[n] {
		n++
	}
	return base + "-" + strconv.Itoa(n)
}

// Get returns the dataset stored under key.
func (r Registry) Get(key string) (*pulse.Dataset, error) {
	d, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: registry: no dataset %q", pulse.ErrLookup, key)
	}
	return d, nil
}

// Has reports whether key is present.
func (r Registry) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Len returns the number of datasets.
func (r Registry) Len() int {
	return len(r.entries)
}

// Keys returns all keys ordered by AMU, then by suffix.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Datasets returns the datasets in Keys order.
func (r Registry) Datasets() []*pulse.Dataset {
	keys := r.Keys()
	out := make([]*pulse.Dataset, len(keys))
	for i, k := range keys {
		out[i] = r.entries[k]
	}
	return out
}

// BaseKey strips a collision suffix: "28.0-2" -> "28.0".
func BaseKey(key string) string {
	base, _ := splitKey(key)
	return base
}

// SortKeys orders registry keys numerically by AMU, then by suffix.
// Keys that are not numeric sort after numeric ones, lexically.
func SortKeys(keys []string) {
	slices.SortFunc(keys, compareKeys)
}

func compareKeys(a, b string) int {
	ba, na := splitKey(a)
	bb, nb := splitKey(b)
	fa, errA := strconv.ParseFloat(ba, 64)
	fb, errB := strconv.ParseFloat(bb, 64)
	switch {
	case errA == nil && errB == nil:
		if fa != fb {
			if fa < fb {
				return -1
			}
			return 1
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		if c := strings.Compare(ba, bb); c != 0 {
			return c
		}
	}
	return na - nb
}

// splitKey separates "base-n" into base and n. Keys without a suffix
// return n == 0.
func splitKey(key string) (string, int) {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 {
		return key, 0
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 2 {
		return key, 0
	}
	return key[:i], n
}
