// Package session threads one user's registry and snapshots through the
// pipeline stages: upload, correct, normalize and export.
//
// A Session serializes its own calls. Separate sessions share nothing
// except what their stores share, so each session should get its own
// store (or its own S3 prefix). A failed call leaves the session as it
// was before the call.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-tap/internal/metrics"
	"github.com/cwbudde/algo-tap/tap/correct"
	"github.com/cwbudde/algo-tap/tap/export"
	"github.com/cwbudde/algo-tap/tap/normalize"
	"github.com/cwbudde/algo-tap/tap/parse"
	"github.com/cwbudde/algo-tap/tap/pulse"
	"github.com/cwbudde/algo-tap/tap/registry"
	"github.com/cwbudde/algo-tap/tap/storage"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; entries carry the session ID.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClearOnStart empties the store when the session is created.
func WithClearOnStart(clear bool) Option {
	return func(s *Session) { s.clearOnStart = clear }
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is one user's pipeline state.
type Session struct {
	id           string
	store        storage.Store
	log          *zap.Logger
	metrics      *metrics.Metrics
	clearOnStart bool

	mu        sync.Mutex
	reg       registry.Registry
	corrected map[string]correct.Result
	inert     string
}

// New creates a session persisting snapshots to store.
func New(ctx context.Context, store storage.Store, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: session: store is required", pulse.ErrValidation)
	}
	s := &Session{
		id:        uuid.NewString(),
		store:     store,
		log:       zap.NewNop(),
		corrected: make(map[string]correct.Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("session_id", s.id))

	if s.clearOnStart {
		if err := store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("session: clear store: %w", err)
		}
	}
	s.log.Debug("session started", zap.Bool("cleared", s.clearOnStart))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the current registry value.
func (s *Session) Registry() registry.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg
}

// Upload parses files and registers every dataset they contain. The
// files are processed in name order; any failure rejects the whole
// upload. It returns the keys assigned to the new datasets.
func (s *Session) Upload(ctx context.Context, files []parse.File) ([]string, error) {
	defer s.metrics.Observe("upload", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := parse.Batch(ctx, files)
	if err != nil {
		if fe, ok := parse.IsFileError(err); ok {
			s.metrics.ParseFailed(fe.Kind.String())
			s.log.Warn("upload rejected", zap.String("file", fe.Name), zap.Stringer("kind", fe.Kind), zap.Error(fe.Err))
		}
		return nil, err
	}

	reg, keys, err := registry.Register(s.reg, ds...)
	if err != nil {
		s.log.Warn("registration rejected", zap.Error(err))
		return nil, err
	}
	s.reg = reg

	for _, f := range files {
		kind := f.Kind
		if kind == parse.KindAuto {
			kind = parse.DetectKind(f.Name, f.Data)
		}
		s.metrics.FileParsed(kind.String())
	}
	s.metrics.Registered(len(keys))
	s.log.Info("upload registered", zap.Int("files", len(files)), zap.Strings("keys", keys))
	return keys, nil
}

// Correct applies p to the dataset under key and persists the corrected
// array under key.
func (s *Session) Correct(ctx context.Context, key string, p correct.Params) (correct.Result, error) {
	defer s.metrics.Observe("correct", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.reg.Get(key)
	if err != nil {
		return correct.Result{}, err
	}
	res, err := correct.Correct(d, p)
	if err != nil {
		s.log.Warn("correction rejected", zap.String("key", key), zap.Error(err))
		return correct.Result{}, err
	}
	a, err := res.Array()
	if err != nil {
		return correct.Result{}, fmt.Errorf("session: %s: %w", key, err)
	}
	if err := s.store.Save(ctx, key, a); err != nil {
		return correct.Result{}, fmt.Errorf("session: save %s: %w", key, err)
	}

	s.corrected[key] = res
	s.metrics.Corrected(res.Variant.String())
	s.log.Info("dataset corrected", zap.String("key", key), zap.Stringer("variant", res.Variant))
	return res, nil
}

// snapshot returns the latest array per key: the corrected variant when
// one exists, the raw pulses otherwise.
func (s *Session) snapshot() (map[string]pulse.Array, error) {
	out := make(map[string]pulse.Array, s.reg.Len())
	for _, k := range s.reg.Keys() {
		if res, ok := s.corrected[k]; ok {
			a, err := res.Array()
			if err != nil {
				return nil, fmt.Errorf("session: %s: %w", k, err)
			}
			out[k] = a
			continue
		}
		d, _ := s.reg.Get(k)
		a, err := d.Array(pulse.VariantRaw)
		if err != nil {
			return nil, fmt.Errorf("session: %s: %w", k, err)
		}
		out[k] = a
	}
	return out, nil
}

// Normalize rescales every dataset against the inert key and persists
// the results below storage.NormalizedPrefix.
func (s *Session) Normalize(ctx context.Context, inert string) (normalize.Result, error) {
	defer s.metrics.Observe("normalize", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshot()
	if err != nil {
		return normalize.Result{}, err
	}
	res, err := normalize.Normalize(snap, inert)
	if err != nil {
		s.log.Warn("normalization rejected", zap.String("inert", inert), zap.Error(err))
		return normalize.Result{}, err
	}

	// A failed save leaves a mix of old and new snapshots behind, so the
	// previous inert no longer describes the stored set.
	s.inert = ""
	for _, k := range res.Keys() {
		if err := s.store.Save(ctx, storage.NormalizedKey(k), res.Arrays[k]); err != nil {
			return normalize.Result{}, fmt.Errorf("session: save normalized %s: %w", k, err)
		}
	}
	s.inert = inert
	s.metrics.Normalized()
	s.log.Info("datasets normalized", zap.String("inert", inert), zap.Int("species", len(res.Arrays)),
		zap.Int("reference_pulse", normalize.MaxAreaPulse(res.Areas[inert])+1))
	return res, nil
}

// ExportSingle writes the persisted snapshot of key as a workbook and
// returns its download name.
func (s *Session) ExportSingle(ctx context.Context, key string, w io.Writer) (string, error) {
	defer s.metrics.Observe("export", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.store.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("session: export %s: %w", key, err)
	}
	t, err := export.ToTable(key, a)
	if err != nil {
		return "", err
	}
	if err := export.WriteWorkbook(w, t); err != nil {
		return "", err
	}
	name := export.Filename(t.AMU)
	s.log.Info("workbook exported", zap.String("key", key), zap.String("file", name))
	return name, nil
}

// ErrNotNormalized is returned by ExportNormalized before any successful
// Normalize call, or after one failed while persisting.
var ErrNotNormalized = fmt.Errorf("session: nothing normalized yet: %w", pulse.ErrLookup)

// ExportNormalized writes the persisted normalized snapshots as one
// workbook and returns its download name.
func (s *Session) ExportNormalized(ctx context.Context, w io.Writer) (string, error) {
	defer s.metrics.Observe("export", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inert == "" {
		return "", ErrNotNormalized
	}
	keys, err := s.store.List(ctx, storage.NormalizedPrefix)
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	var tables []export.Table
	for _, nk := range keys {
		k, ok := storage.SourceKey(nk)
		if !ok || !s.reg.Has(k) {
			continue
		}
		a, err := s.store.Load(ctx, nk)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("session: export %s: %w", nk, err)
		}
		t, err := export.ToTable(k, a)
		if err != nil {
			return "", err
		}
		tables = append(tables, t)
	}
	if err := export.WriteNormalizedWorkbook(w, tables); err != nil {
		return "", err
	}
	name := export.NormalizedFilename(s.inert)
	s.log.Info("normalized workbook exported", zap.String("inert", s.inert), zap.Int("sheets", len(tables)))
	return name, nil
}
