package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dupsync/internal/dedup/selection"
	"dupsync/internal/model"
)

func writeDriverFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunFindsDuplicatesAcrossTwoLocalRoots(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeDriverFixture(t, rootA, "shared.txt", "identical-content")
	writeDriverFixture(t, rootB, "shared-copy.txt", "identical-content")
	writeDriverFixture(t, rootA, "unique.txt", "only-in-a")

	out, err := Run(context.Background(), Options{
		RawRoots:    []string{rootA, rootB},
		Algorithm:   model.AlgoSHA256,
		Parallelism: 2,
		Selection:   selection.NewestModified,
		DryRun:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.LocalReport.DuplicateSets) != 1 {
		t.Fatalf("expected 1 duplicate set across both roots, got %d", len(out.LocalReport.DuplicateSets))
	}
	if len(out.LocalReport.DuplicateSets[0].Files) != 2 {
		t.Errorf("expected 2 files in the cross-root duplicate set")
	}
}

func TestRunDryRunProducesNoFilesystemChanges(t *testing.T) {
	rootA := t.TempDir()
	writeDriverFixture(t, rootA, "a.txt", "dup")
	writeDriverFixture(t, rootA, "b.txt", "dup")

	out, err := Run(context.Background(), Options{
		RawRoots:  []string{rootA},
		Algorithm: model.AlgoSHA256,
		Selection: selection.NewestModified,
		Delete:    true,
		DryRun:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.ActionResults) != 1 {
		t.Fatalf("expected 1 planned delete action, got %d", len(out.ActionResults))
	}
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := os.Stat(filepath.Join(rootA, name)); err != nil {
			t.Errorf("dry run must not delete %s: %v", name, err)
		}
	}
}

func TestCopyMissingActionsSkipsPathsPresentInTarget(t *testing.T) {
	source := model.Root{ID: 1, Path: "/source"}
	target := model.Root{ID: 2, Path: "/target", IsTarget: true}
	records := []model.FileRecord{
		{RootID: 1, RelativePath: "only-in-source.txt", AbsolutePath: "/source/only-in-source.txt"},
		{RootID: 1, RelativePath: "present-in-both.txt", AbsolutePath: "/source/present-in-both.txt"},
		{RootID: 2, RelativePath: "present-in-both.txt", AbsolutePath: "/target/present-in-both.txt"},
	}
	actions := CopyMissingActions(context.Background(), records, []model.Root{source, target})
	if len(actions) != 1 {
		t.Fatalf("expected exactly 1 copy-missing action, got %d", len(actions))
	}
	if actions[0].Target.RelativePath != "only-in-source.txt" {
		t.Errorf("expected the missing file to be copied, got %+v", actions[0])
	}
}
