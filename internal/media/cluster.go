package media

import (
	"context"
	"sort"

	"dupsync/internal/model"
)

// Item is one fingerprinted file awaiting clustering.
type Item struct {
	Record model.FileRecord
	Fingerprint Fingerprint
}

// ClusterConfig tunes the similarity grouping.
type ClusterConfig struct {
	// Threshold is the minimum 0-100 similarity score for an edge.
	Threshold float64
	// RequireAllPairs implements the stricter redesign variant: a
	// cluster is only valid if every pair of its members clears
	// Threshold, not just a connected chain of pairs. This trades
	// recall for the guarantee that every member in the reported
	// group genuinely resembles every other member.
	RequireAllPairs bool
}

// MediaDuplicateSet pairs a clustered DuplicateSet with the per-file
// Info (resolution, format) its members were fingerprinted with, in
// the same order as Set.Files. Cluster discards this alongside the
// Fingerprint once a DuplicateSet is built; SelectKept needs it back
// to apply the resolution/format preference cascade before KeptIndex
// is settled, so Cluster hands it out instead of re-deriving it.
type MediaDuplicateSet struct {
	Set   model.DuplicateSet
	Infos []Info
}

// Cluster groups items whose fingerprints are mutually similar at or
// above cfg.Threshold into DuplicateSets, mirroring the byte-identical
// grouper's two-stage shape: build candidate edges, then partition
// into equivalence classes. The default mode uses plain connected
// components (similarity is not transitive, so a loose chain can link
// two dissimilar files through an intermediate); RequireAllPairs
// additionally demands every pairwise edge inside a component.
// KeptIndex on each returned Set is left at its zero value — Cluster
// only decides membership; SelectKept decides which member to keep.
func Cluster(_ context.Context, items []Item, cfg ClusterConfig) ([]MediaDuplicateSet, error) {
	n := len(items)
	if n < 2 {
		return nil, nil
	}

	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim, err := Similarity(items[i].Fingerprint.Digest, items[j].Fingerprint.Digest)
			if err != nil {
				continue // mismatched algorithm/kind: never an edge
			}
			if sim >= cfg.Threshold {
				adj[i][j] = true
				adj[j][i] = true
			}
		}
	}

	components := connectedComponents(adj, n)

	var sets []MediaDuplicateSet
	for _, comp := range components {
		if len(comp) < 2 {
			continue
		}
		if cfg.RequireAllPairs && !allPairsConnected(adj, comp) {
			for _, sub := range splitCliques(adj, comp) {
				if len(sub) >= 2 {
					sets = append(sets, buildSet(items, sub))
				}
			}
			continue
		}
		sets = append(sets, buildSet(items, comp))
	}
	return sets, nil
}

func connectedComponents(adj [][]bool, n int) [][]int {
	visited := make([]bool, n)
	var components [][]int
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		stack := []int{start}
		visited[start] = true
		var comp []int
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, cur)
			for next := 0; next < n; next++ {
				if adj[cur][next] && !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

func allPairsConnected(adj [][]bool, comp []int) bool {
	for i := 0; i < len(comp); i++ {
		for j := i + 1; j < len(comp); j++ {
			if !adj[comp[i]][comp[j]] {
				return false
			}
		}
	}
	return true
}

// splitCliques greedily partitions a loosely-connected component into
// maximal-by-construction groups that each satisfy the all-pairs
// requirement, so nothing from a failed RequireAllPairs component is
// silently dropped.
func splitCliques(adj [][]bool, comp []int) [][]int {
	remaining := append([]int(nil), comp...)
	var groups [][]int
	for len(remaining) > 0 {
		seed := remaining[0]
		group := []int{seed}
		var rest []int
		for _, v := range remaining[1:] {
			fitsAll := true
			for _, g := range group {
				if !adj[v][g] {
					fitsAll = false
					break
				}
			}
			if fitsAll {
				group = append(group, v)
			} else {
				rest = append(rest, v)
			}
		}
		groups = append(groups, group)
		remaining = rest
	}
	return groups
}

func buildSet(items []Item, indices []int) MediaDuplicateSet {
	sorted := append([]int(nil), indices...)
	sort.Slice(sorted, func(i, j int) bool {
		return items[sorted[i]].Record.AbsolutePath < items[sorted[j]].Record.AbsolutePath
	})

	files := make([]model.FileRecord, len(sorted))
	infos := make([]Info, len(sorted))
	for i, idx := range sorted {
		files[i] = items[idx].Record
		infos[i] = items[idx].Fingerprint.Info
	}

	algo := items[indices[0]].Fingerprint.Digest.Algorithm
	return MediaDuplicateSet{
		Set: model.DuplicateSet{
			Digest:    model.Digest{Algorithm: algo},
			Files:     files,
			KeptIndex: 0,
			Rationale: "media-similarity",
		},
		Infos: infos,
	}
}
