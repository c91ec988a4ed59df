package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cwbudde/algo-tap/internal/testutil"
	"github.com/cwbudde/algo-tap/tap/pulse"
)

// fakeS3 keeps objects in memory and pages listings two keys at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	slices.Sort(keys)

	start := 0
	if in.ContinuationToken != nil {
		start = slices.Index(keys, aws.ToString(in.ContinuationToken))
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir, err := NewDir(filepath.Join(t.TempDir(), "tmp"))
	if err != nil {
		t.Fatal(err)
	}
	bucket, err := NewS3(newFakeS3(), "tap", "/sessions/abc/")
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"dir":    dir,
		"s3":     bucket,
	}
}

func snapshot(t *testing.T, amu float64, nPulses int) pulse.Array {
	t.Helper()
	a, err := testutil.Dataset(amu, nPulses, 25, 1).Array(pulse.VariantRaw)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := snapshot(t, 28, 3)
			b := snapshot(t, 2, 3)

			if err := s.Save(ctx, "28.0", a); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(ctx, NormalizedKey("28.0"), b); err != nil {
				t.Fatalf("Save normalized: %v", err)
			}
			if err := s.Save(ctx, "2.0", b); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := s.Load(ctx, "28.0")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			testutil.RequireMatrixNearlyEqual(t, got, a, 0)

			// Last write wins.
			if err := s.Save(ctx, "28.0", b); err != nil {
				t.Fatal(err)
			}
			got, err = s.Load(ctx, "28.0")
			if err != nil {
				t.Fatal(err)
			}
			testutil.RequireMatrixNearlyEqual(t, got, b, 0)

			all, err := s.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{"2.0", "28.0", "normalized/28.0-i"}; !slices.Equal(all, want) {
				t.Fatalf("List = %v, want %v", all, want)
			}
			norm, err := s.List(ctx, NormalizedPrefix)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(norm, []string{"normalized/28.0-i"}) {
				t.Fatalf("List normalized = %v", norm)
			}

			if _, err := s.Load(ctx, "40.0"); !errors.Is(err, ErrNotFound) || !errors.Is(err, pulse.ErrLookup) {
				t.Fatalf("missing key: error = %v", err)
			}
			if err := s.Save(ctx, "../escape", a); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("bad key: error = %v", err)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if all, _ := s.List(ctx, ""); len(all) != 0 {
				t.Fatalf("after Clear: %v", all)
			}
		})
	}
}

func TestMemoryCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := snapshot(t, 2, 2)
	if err := s.Save(ctx, "2.0", a); err != nil {
		t.Fatal(err)
	}
	a[3][0] = 99
	got, _ := s.Load(ctx, "2.0")
	if got[3][0] == 99 {
		t.Fatal("store aliases the saved array")
	}
}

func TestDirLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, NormalizedKey("40.0"), snapshot(t, 40, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "normalized", "40.0-i.parquet")); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root removed by Clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "normalized")); !os.IsNotExist(err) {
		t.Fatalf("empty snapshot directory kept: %v", err)
	}
}

func TestDirClearKeepsForeignFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewDir(root)
	if err != nil {
		t.Fatal(err)
	}
	foreign := []string{
		filepath.Join(root, "pulse_28.dat"),
		filepath.Join(root, "input", "run.xlsx"),
	}
	for _, p := range foreign {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("TAP-1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for _, key := range []string{"28.0", "input/28.0", NormalizedKey("28.0")} {
		if err := s.Save(ctx, key, snapshot(t, 28, 2)); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, p := range foreign {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s removed by Clear: %v", filepath.Base(p), err)
		}
	}
	if keys, _ := s.List(ctx, ""); len(keys) != 0 {
		t.Fatalf("snapshots left: %v", keys)
	}
}

func TestCodec(t *testing.T) {
	a := snapshot(t, 28, 4)
	data, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireMatrixNearlyEqual(t, got, a, 0)

	if _, err := Encode(pulse.Array{{1}}); !errors.Is(err, pulse.ErrShape) {
		t.Fatalf("Encode error = %v, want ErrShape", err)
	}
	if _, err := Decode([]byte("not parquet")); !errors.Is(err, pulse.ErrParse) {
		t.Fatalf("Decode error = %v, want ErrParse", err)
	}
}

func TestKeys(t *testing.T) {
	if got := NormalizedKey("28.0-2"); got != "normalized/28.0-2-i" {
		t.Fatalf("NormalizedKey = %q", got)
	}
	if k, ok := SourceKey("normalized/28.0-2-i"); !ok || k != "28.0-2" {
		t.Fatalf("SourceKey = %q, %v", k, ok)
	}
	if _, ok := SourceKey("28.0"); ok {
		t.Fatal("SourceKey accepted a plain key")
	}
	for _, k := range []string{"", "/abs", "a/../b", "..", "a\\b", "a//b"} {
		if err := checkKey(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("checkKey(%q) = %v", k, err)
		}
	}
}
