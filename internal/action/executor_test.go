package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dupsync/internal/model"
)

func writeFixture(t *testing.T, dir, name, content string) model.FileRecord {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return model.FileRecord{RootID: 1, AbsolutePath: p, RelativePath: name}
}

func TestExecuteDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	rec := writeFixture(t, dir, "dup.txt", "x")
	roots := map[int]model.Root{1: {ID: 1, Kind: model.RootLocal, Path: dir}}
	ex := New(roots, nil, false, nil)

	results := ex.Execute(context.Background(), []model.Action{{Kind: model.ActionDelete, Target: rec}})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if _, err := os.Stat(rec.AbsolutePath); !os.IsNotExist(err) {
		t.Error("expected file to be deleted")
	}
}

func TestExecuteDeleteVanishedFileIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	rec := model.FileRecord{RootID: 1, AbsolutePath: filepath.Join(dir, "gone.txt")}
	roots := map[int]model.Root{1: {ID: 1, Kind: model.RootLocal, Path: dir}}
	ex := New(roots, nil, false, nil)

	results := ex.Execute(context.Background(), []model.Action{{Kind: model.ActionDelete, Target: rec}})
	if results[0].Err != nil {
		t.Fatalf("vanished file should not be a fatal error: %v", results[0].Err)
	}
	if !results[0].Skipped {
		t.Error("expected Skipped=true for vanished file")
	}
}

func TestDryRunNeutrality(t *testing.T) {
	dir := t.TempDir()
	rec := writeFixture(t, dir, "keepme.txt", "data")
	roots := map[int]model.Root{1: {ID: 1, Kind: model.RootLocal, Path: dir}}

	actions := []model.Action{{Kind: model.ActionDelete, Target: rec}}

	dryEx := New(roots, nil, true, nil)
	dryResults := dryEx.Execute(context.Background(), actions)

	if len(dryResults) != len(actions) {
		t.Fatalf("expected same number of results as actions")
	}
	if dryResults[0].Err != nil {
		t.Errorf("dry run should not error")
	}
	if _, err := os.Stat(rec.AbsolutePath); err != nil {
		t.Errorf("dry run must not mutate the filesystem: %v", err)
	}
}

func TestExecuteCopyToLocalDestination(t *testing.T) {
	dir := t.TempDir()
	destDir := t.TempDir()
	rec := writeFixture(t, dir, "src.txt", "payload")
	roots := map[int]model.Root{1: {ID: 1, Kind: model.RootLocal, Path: dir}}
	ex := New(roots, nil, false, nil)

	dst := filepath.Join(destDir, "copied.txt")
	results := ex.Execute(context.Background(), []model.Action{{Kind: model.ActionCopyTo, Target: rec, DestPath: dst}})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "payload" {
		t.Errorf("expected copied content, got %q", content)
	}
	if _, err := os.Stat(rec.AbsolutePath); err != nil {
		t.Errorf("copy must not remove the source: %v", err)
	}
}

func TestExecuteMoveToLocalDestination(t *testing.T) {
	dir := t.TempDir()
	destDir := t.TempDir()
	rec := writeFixture(t, dir, "src.txt", "payload")
	roots := map[int]model.Root{1: {ID: 1, Kind: model.RootLocal, Path: dir}}
	ex := New(roots, nil, false, nil)

	dst := filepath.Join(destDir, "moved.txt")
	results := ex.Execute(context.Background(), []model.Action{{Kind: model.ActionMoveTo, Target: rec, DestPath: dst}})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("expected moved file at destination: %v", err)
	}
	if _, err := os.Stat(rec.AbsolutePath); !os.IsNotExist(err) {
		t.Errorf("expected source removed after move")
	}
}

func TestExecuteContinuesAfterPerActionFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeFixture(t, dir, "good.txt", "x")
	bad := model.FileRecord{RootID: 99, AbsolutePath: filepath.Join(dir, "nope.txt")}
	roots := map[int]model.Root{
		1:  {ID: 1, Kind: model.RootLocal, Path: dir},
		99: {ID: 99, Kind: model.RootRemote, Host: "example.invalid", Path: "/srv"},
	}
	ex := New(roots, nil, false, nil)

	actions := []model.Action{
		{Kind: model.ActionDelete, Target: bad},
		{Kind: model.ActionDelete, Target: good},
	}
	results := ex.Execute(context.Background(), actions)
	if len(results) != 2 {
		t.Fatalf("expected 2 results")
	}
	if results[0].Err == nil {
		t.Error("expected the first action to fail: its root is remote and no remote transfer is configured")
	}
	if _, err := os.Stat(good.AbsolutePath); !os.IsNotExist(err) {
		t.Error("expected second action to still execute and delete good.txt")
	}
}
