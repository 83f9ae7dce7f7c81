package hashcache

import (
	"path/filepath"
	"testing"
	"time"

	"dupsync/internal/model"
)

func openTest(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLookupMissThenHit(t *testing.T) {
	c := openTest(t)
	rec := model.FileRecord{AbsolutePath: "/tmp/x", SizeBytes: 5, ModTime: time.Unix(1000, 0)}

	if _, ok := c.Lookup(rec, model.AlgoXXHash); ok {
		t.Fatal("expected miss on empty cache")
	}

	digest := model.Digest{Algorithm: model.AlgoXXHash, Bytes: []byte{0xAB, 0xCD}}
	if err := c.Store(rec, digest); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Lookup(rec, model.AlgoXXHash)
	if !ok {
		t.Fatal("expected hit after store")
	}
	if !got.Equal(digest) {
		t.Errorf("got %v, want %v", got, digest)
	}
}

func TestLookupInvalidatesOnSizeOrMtimeChange(t *testing.T) {
	c := openTest(t)
	rec := model.FileRecord{AbsolutePath: "/tmp/y", SizeBytes: 10, ModTime: time.Unix(2000, 0)}
	digest := model.Digest{Algorithm: model.AlgoXXHash, Bytes: []byte{1, 2, 3}}
	if err := c.Store(rec, digest); err != nil {
		t.Fatal(err)
	}

	changedSize := rec
	changedSize.SizeBytes = 11
	if _, ok := c.Lookup(changedSize, model.AlgoXXHash); ok {
		t.Error("expected miss after size change")
	}

	changedMtime := rec
	changedMtime.ModTime = time.Unix(2001, 0)
	if _, ok := c.Lookup(changedMtime, model.AlgoXXHash); ok {
		t.Error("expected miss after mtime change")
	}
}

func TestStoreOverwritesExistingEntry(t *testing.T) {
	c := openTest(t)
	rec := model.FileRecord{AbsolutePath: "/tmp/z", SizeBytes: 1, ModTime: time.Unix(3000, 0)}

	first := model.Digest{Algorithm: model.AlgoXXHash, Bytes: []byte{0x01}}
	second := model.Digest{Algorithm: model.AlgoXXHash, Bytes: []byte{0x02}}

	if err := c.Store(rec, first); err != nil {
		t.Fatal(err)
	}
	if err := c.Store(rec, second); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Lookup(rec, model.AlgoXXHash)
	if !ok || !got.Equal(second) {
		t.Errorf("expected updated digest %v, got %v (ok=%v)", second, got, ok)
	}
}

func TestResetDiscardsAllEntries(t *testing.T) {
	c := openTest(t)
	rec := model.FileRecord{AbsolutePath: "/tmp/w", SizeBytes: 1, ModTime: time.Unix(4000, 0)}
	_ = c.Store(rec, model.Digest{Algorithm: model.AlgoXXHash, Bytes: []byte{0x09}})

	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup(rec, model.AlgoXXHash); ok {
		t.Error("expected no entries after reset")
	}
}
