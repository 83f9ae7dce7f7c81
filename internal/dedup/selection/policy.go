// Package selection implements C5: given a DuplicateSet, choose
// exactly one kept member by a deterministic, reproducible strategy.
package selection

import (
	"fmt"
	"sort"

	"dupsync/internal/model"
)

// Strategy names a selection rule from spec.md §4.5.
type Strategy string

const (
	NewestModified Strategy = "newest_modified"
	OldestModified Strategy = "oldest_modified"
	ShortestPath   Strategy = "shortest_path"
	LongestPath    Strategy = "longest_path"
)

// Valid reports whether s is one of the four declared strategies.
func (s Strategy) Valid() bool {
	switch s {
	case NewestModified, OldestModified, ShortestPath, LongestPath:
		return true
	default:
		return false
	}
}

// Apply picks the kept index for set according to strategy and
// returns a copy of set with KeptIndex and Rationale filled in. Ties
// are broken, in order, by longest path then lexicographic path
// (mtime strategies) or by lexicographic path alone (path-length
// strategies) so the result is reproducible across machines given the
// same inputs.
func Apply(set model.DuplicateSet, strategy Strategy) (model.DuplicateSet, error) {
	if len(set.Files) == 0 {
		return set, fmt.Errorf("selection: empty duplicate set")
	}
	if !strategy.Valid() {
		return set, fmt.Errorf("selection: unknown strategy %q", strategy)
	}

	best := 0
	for i := 1; i < len(set.Files); i++ {
		if better(set.Files[i], set.Files[best], strategy) {
			best = i
		}
	}

	set.KeptIndex = best
	set.Rationale = string(strategy)
	return set, nil
}

// better reports whether candidate should replace current as the
// kept file under strategy.
func better(candidate, current model.FileRecord, strategy Strategy) bool {
	switch strategy {
	case NewestModified:
		if !candidate.ModTime.Equal(current.ModTime) {
			return candidate.ModTime.After(current.ModTime)
		}
		return tieBreakByPath(candidate, current)
	case OldestModified:
		if !candidate.ModTime.Equal(current.ModTime) {
			return candidate.ModTime.Before(current.ModTime)
		}
		return tieBreakByPath(candidate, current)
	case ShortestPath:
		if len(candidate.AbsolutePath) != len(current.AbsolutePath) {
			return len(candidate.AbsolutePath) < len(current.AbsolutePath)
		}
		return candidate.AbsolutePath < current.AbsolutePath
	case LongestPath:
		if len(candidate.AbsolutePath) != len(current.AbsolutePath) {
			return len(candidate.AbsolutePath) > len(current.AbsolutePath)
		}
		return candidate.AbsolutePath < current.AbsolutePath
	default:
		return false
	}
}

// tieBreakByPath implements the mtime strategies' documented
// tie-break: longest path first, then lexicographic path.
func tieBreakByPath(candidate, current model.FileRecord) bool {
	if len(candidate.AbsolutePath) != len(current.AbsolutePath) {
		return len(candidate.AbsolutePath) > len(current.AbsolutePath)
	}
	return candidate.AbsolutePath < current.AbsolutePath
}

// ApplyAll runs Apply over every set, stopping at the first error.
func ApplyAll(sets []model.DuplicateSet, strategy Strategy) ([]model.DuplicateSet, error) {
	out := make([]model.DuplicateSet, len(sets))
	for i, s := range sets {
		applied, err := Apply(s, strategy)
		if err != nil {
			return nil, err
		}
		out[i] = applied
	}
	// Sort files within each set for report determinism; KeptIndex is
	// recomputed after sorting since indices shift.
	for i := range out {
		kept := out[i].Files[out[i].KeptIndex]
		sort.Slice(out[i].Files, func(a, b int) bool {
			return out[i].Files[a].AbsolutePath < out[i].Files[b].AbsolutePath
		})
		for j, f := range out[i].Files {
			if f.AbsolutePath == kept.AbsolutePath {
				out[i].KeptIndex = j
				break
			}
		}
	}
	return out, nil
}
