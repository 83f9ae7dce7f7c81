package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dupsync/internal/model"
)

type fakeFingerprinter struct {
	digest model.Digest
	err    error
}

func (f *fakeFingerprinter) Fingerprint(_ context.Context, _ string) (Fingerprint, error) {
	if f.err != nil {
		return Fingerprint{}, f.err
	}
	return Fingerprint{Digest: f.digest}, nil
}

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func mustWriteFingerprintFixture(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFingerprintAllDispatchesByKindAndSkipsUnknown(t *testing.T) {
	dir := t.TempDir()
	mustWriteFingerprintFixture(t, dir, "a.png", pngSignature)
	mustWriteFingerprintFixture(t, dir, "notes.txt", []byte("plain text, not media"))

	records := []model.FileRecord{
		{AbsolutePath: filepath.Join(dir, "a.png")},
		{AbsolutePath: filepath.Join(dir, "notes.txt")},
	}

	fps := Fingerprinters{Image: &fakeFingerprinter{digest: model.Digest{Algorithm: model.AlgoPHash, Bytes: uint64ToBytes(1)}}}
	items, errs := FingerprintAll(context.Background(), records, fps)
	if len(errs) != 0 {
		t.Fatalf("expected no fingerprint errors, got %+v", errs)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one item for the image, got %d", len(items))
	}
	if items[0].Record.AbsolutePath != filepath.Join(dir, "a.png") {
		t.Errorf("unexpected item: %+v", items[0])
	}
}

func TestFingerprintAllCollectsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	mustWriteFingerprintFixture(t, dir, "broken.png", pngSignature)

	records := []model.FileRecord{{AbsolutePath: filepath.Join(dir, "broken.png")}}
	fps := Fingerprinters{Image: &fakeFingerprinter{err: context.DeadlineExceeded}}

	items, errs := FingerprintAll(context.Background(), records, fps)
	if len(items) != 0 {
		t.Errorf("expected no items when the fingerprinter fails, got %d", len(items))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one collected error, got %d", len(errs))
	}
}
