package media

import (
	"context"
	"testing"

	"dupsync/internal/model"
)

func hashItem(path string, bits uint64) Item {
	return Item{
		Record:      model.FileRecord{AbsolutePath: path},
		Fingerprint: Fingerprint{Digest: model.Digest{Algorithm: model.AlgoPHash, Bytes: uint64ToBytes(bits)}},
	}
}

func TestSimilarityIdenticalHashesIs100(t *testing.T) {
	a := model.Digest{Algorithm: model.AlgoPHash, Bytes: uint64ToBytes(0xABCDEF0123456789)}
	b := model.Digest{Algorithm: model.AlgoPHash, Bytes: uint64ToBytes(0xABCDEF0123456789)}
	sim, err := Similarity(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if sim != 100 {
		t.Errorf("expected 100, got %v", sim)
	}
}

func TestSimilarityMismatchedAlgorithmErrors(t *testing.T) {
	a := model.Digest{Algorithm: model.AlgoPHash, Bytes: uint64ToBytes(1)}
	b := model.Digest{Algorithm: model.AlgoVHash, Bytes: uint64ToBytes(1)}
	if _, err := Similarity(a, b); err == nil {
		t.Error("expected error for mismatched algorithms")
	}
}

// S6: a re-encoded near-duplicate clusters with the original, an
// unrelated file does not.
func TestClusterGroupsNearDuplicatesAboveThreshold(t *testing.T) {
	items := []Item{
		hashItem("/a/original.jpg", 0xF0F0F0F0F0F0F0F0),
		hashItem("/a/reencoded.png", 0xF0F0F0F0F0F0F0F1), // 1 bit off -> ~98.4% similar
		hashItem("/a/unrelated.png", 0x0F0F0F0F0F0F0F0F), // fully inverted -> 0% similar
	}
	sets, err := Cluster(context.Background(), items, ClusterConfig{Threshold: 90})
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(sets))
	}
	if len(sets[0].Set.Files) != 2 {
		t.Fatalf("expected 2 files in cluster, got %d", len(sets[0].Set.Files))
	}
	for _, f := range sets[0].Set.Files {
		if f.AbsolutePath == "/a/unrelated.png" {
			t.Error("unrelated file should not be in the cluster")
		}
	}
}

func TestClusterBelowThresholdProducesNoSets(t *testing.T) {
	items := []Item{
		hashItem("/a/x.jpg", 0xFFFFFFFFFFFFFFFF),
		hashItem("/a/y.jpg", 0x0000000000000000),
	}
	sets, err := Cluster(context.Background(), items, ClusterConfig{Threshold: 90})
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 0 {
		t.Errorf("expected no clusters, got %d", len(sets))
	}
}

func TestClusterRequireAllPairsSplitsLooseChains(t *testing.T) {
	// A-B similar (5 bits apart), B-C similar (5 bits apart), A-C not
	// similar (10 bits apart): a loose chain that plain connected
	// components merges into one group of three but RequireAllPairs
	// must not.
	a := hashItem("/a.jpg", 0x0)
	b := hashItem("/b.jpg", 0x1F)
	c := hashItem("/c.jpg", 0x3FF)
	items := []Item{a, b, c}

	loose, err := Cluster(context.Background(), items, ClusterConfig{Threshold: 85})
	if err != nil {
		t.Fatal(err)
	}
	if len(loose) != 1 || len(loose[0].Set.Files) != 3 {
		t.Fatalf("expected the loose variant to merge all three, got %+v", loose)
	}

	strict, err := Cluster(context.Background(), items, ClusterConfig{Threshold: 85, RequireAllPairs: true})
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, s := range strict {
		if len(s.Set.Files) == 3 {
			t.Errorf("strict mode must not keep a, b and c together: a-c fails the all-pairs requirement")
		}
		total += len(s.Set.Files)
	}
	if total > 3 {
		t.Errorf("strict mode should not invent members, got %d total", total)
	}
}

func TestClusterFewerThanTwoItemsProducesNoSets(t *testing.T) {
	sets, err := Cluster(context.Background(), []Item{hashItem("/a.jpg", 1)}, ClusterConfig{Threshold: 90})
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 0 {
		t.Errorf("expected no clusters for a single item")
	}
}
