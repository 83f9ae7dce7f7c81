package hashengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dupsync/internal/model"
)

func writeTemp(t *testing.T, dir, name, content string) model.FileRecord {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	return model.FileRecord{AbsolutePath: p, RelativePath: name, SizeBytes: info.Size(), ModTime: info.ModTime()}
}

func runAll(t *testing.T, algo model.Algorithm, recs []model.FileRecord) map[string]Result {
	t.Helper()
	in := make(chan model.FileRecord, len(recs))
	for _, r := range recs {
		in <- r
	}
	close(in)

	out := Run(context.Background(), in, Config{Algorithm: algo, Parallelism: 2})
	results := map[string]Result{}
	for res := range out {
		results[res.Record.AbsolutePath] = res
	}
	return results
}

func TestHashConsistencyAcrossAlgorithms(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.txt", "identical content")
	b := writeTemp(t, dir, "b.txt", "identical content")
	c := writeTemp(t, dir, "c.txt", "different content")

	for _, algo := range []model.Algorithm{model.AlgoMD5, model.AlgoSHA256, model.AlgoBlake3, model.AlgoXXHash, model.AlgoFNV1a, model.AlgoCRC32, model.AlgoGxHash} {
		results := runAll(t, algo, []model.FileRecord{a, b, c})
		da, db, dc := results[a.AbsolutePath], results[b.AbsolutePath], results[c.AbsolutePath]
		if da.Err != nil || db.Err != nil || dc.Err != nil {
			t.Fatalf("algo %s: unexpected error: %v %v %v", algo, da.Err, db.Err, dc.Err)
		}
		if !da.Digest.Equal(db.Digest) {
			t.Errorf("algo %s: expected a and b to hash equal", algo)
		}
		if da.Digest.Equal(dc.Digest) {
			t.Errorf("algo %s: expected a and c to hash different", algo)
		}
	}
}

func TestEmptyFileDigestIsStable(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "empty1.bin", "")
	b := writeTemp(t, dir, "empty2.bin", "")

	results := runAll(t, model.AlgoXXHash, []model.FileRecord{a, b})
	if !results[a.AbsolutePath].Digest.Equal(results[b.AbsolutePath].Digest) {
		t.Error("expected two empty files to produce the same digest")
	}
}

func TestPerFileErrorDoesNotAbortRun(t *testing.T) {
	dir := t.TempDir()
	good := writeTemp(t, dir, "good.txt", "hi")
	missing := model.FileRecord{AbsolutePath: filepath.Join(dir, "missing.txt"), RelativePath: "missing.txt"}

	results := runAll(t, model.AlgoXXHash, []model.FileRecord{good, missing})
	if results[good.AbsolutePath].Err != nil {
		t.Errorf("expected good file to hash without error")
	}
	if results[missing.AbsolutePath].Err == nil {
		t.Errorf("expected missing file to report an error")
	}
}

type fakeCache struct {
	lookups map[string]model.Digest
	stored  map[string]model.Digest
}

func newFakeCache() *fakeCache {
	return &fakeCache{lookups: map[string]model.Digest{}, stored: map[string]model.Digest{}}
}

func (c *fakeCache) Lookup(rec model.FileRecord, algo model.Algorithm) (model.Digest, bool) {
	d, ok := c.lookups[rec.AbsolutePath]
	return d, ok
}

func (c *fakeCache) Store(rec model.FileRecord, digest model.Digest) error {
	c.stored[rec.AbsolutePath] = digest
	return nil
}

func TestFastModeConsultsCache(t *testing.T) {
	dir := t.TempDir()
	rec := writeTemp(t, dir, "cached.txt", "content")

	cache := newFakeCache()
	cached := model.Digest{Algorithm: model.AlgoXXHash, Bytes: []byte{1, 2, 3, 4}}
	cache.lookups[rec.AbsolutePath] = cached

	in := make(chan model.FileRecord, 1)
	in <- rec
	close(in)

	out := Run(context.Background(), in, Config{Algorithm: model.AlgoXXHash, Parallelism: 1, FastMode: true, Cache: cache})
	res := <-out
	if !res.Digest.Equal(cached) {
		t.Errorf("expected cached digest to be returned verbatim, got %v", res.Digest)
	}
}
