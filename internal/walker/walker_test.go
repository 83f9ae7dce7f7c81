package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dupsync/internal/model"
)

func collect(ch <-chan model.FileRecord) []model.FileRecord {
	var out []model.FileRecord
	for rec := range ch {
		out = append(out, rec)
	}
	return out
}

func TestWalkEmitsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.txt"), "hello")
	mustWrite(t, filepath.Join(dir, "sub", "b.txt"), "world")
	if err := os.Mkdir(filepath.Join(dir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	root := model.Root{ID: 1, Kind: model.RootLocal, Path: dir}
	recs := collect(Walk(ctx, root, Options{}))

	if len(recs) != 2 {
		t.Fatalf("expected 2 file records, got %d: %+v", len(recs), recs)
	}
}

func TestWalkEmitsZeroByteFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "empty.bin"), "")

	ctx := context.Background()
	root := model.Root{ID: 1, Kind: model.RootLocal, Path: dir}
	recs := collect(Walk(ctx, root, Options{}))

	if len(recs) != 1 || recs[0].SizeBytes != 0 {
		t.Fatalf("expected one zero-byte record, got %+v", recs)
	}
}

func TestWalkHonorsFilter(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "keep.log"), "x")
	mustWrite(t, filepath.Join(dir, "skip.tmp"), "x")

	f := NewFilter([]string{"*.log"}, nil)
	ctx := context.Background()
	root := model.Root{ID: 1, Kind: model.RootLocal, Path: dir}
	recs := collect(Walk(ctx, root, Options{Filter: f}))

	if len(recs) != 1 || filepath.Base(recs[0].AbsolutePath) != "keep.log" {
		t.Fatalf("expected only keep.log, got %+v", recs)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
