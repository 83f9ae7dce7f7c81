package driver

import (
	"context"

	"dupsync/internal/model"
)

// CopyMissingActions compares the last root in roots (the target,
// per model.Root.IsTarget) against every earlier root and returns a
// CopyTo action for each relative path present in an earlier root but
// absent from the target, the supplemented "sync gaps between trees"
// feature original_source/ implements alongside pure dedup.
//
// Unlike the duplicate-set actions, these operate on content presence
// by relative path rather than by digest: two files at the same
// relative path with different content are not considered "missing"
// and are left untouched, since overwriting a differently-named or
// differently-contentd file silently is not what copy-missing means.
func CopyMissingActions(_ context.Context, records []model.FileRecord, roots []model.Root) []model.Action {
	if len(roots) < 2 {
		return nil
	}
	target := roots[len(roots)-1]

	targetPaths := make(map[string]bool)
	for _, rec := range records {
		if rec.RootID == target.ID {
			targetPaths[rec.RelativePath] = true
		}
	}

	var actions []model.Action
	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.RootID == target.ID {
			continue
		}
		if targetPaths[rec.RelativePath] {
			continue
		}
		// Only the first non-target root offering a given relative
		// path wins; later roots offering the same missing path are
		// skipped rather than overwriting each other's copy.
		if seen[rec.RelativePath] {
			continue
		}
		seen[rec.RelativePath] = true
		actions = append(actions, model.Action{
			Kind:     model.ActionCopyTo,
			Target:   rec,
			DestPath: destPathFor(target, rec.RelativePath),
			DestRoot: &target,
		})
	}
	return actions
}
