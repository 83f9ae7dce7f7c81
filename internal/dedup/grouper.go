// Package dedup implements C4: the two-stage equivalence grouping
// that turns a flat list of FileRecords into DuplicateSets, and hosts
// the selection package (C5) that decides which member of each set to
// keep.
package dedup

import (
	"context"

	"dupsync/internal/hashengine"
	"dupsync/internal/model"
)

// FileError pairs a FileRecord with the error that occurred while
// hashing it; per spec.md §4.2 these never abort the run.
type FileError struct {
	Record model.FileRecord
	Err    error
}

// Config controls a Group run.
type Config struct {
	Algorithm   model.Algorithm
	Parallelism int
	FastMode    bool
	Cache       hashengine.Cache
}

// Group buckets records by size, discards singleton size buckets,
// hashes the remainder through the hash engine, and buckets by digest
// into DuplicateSets of cardinality >= 2. The kept member of each set
// is NOT chosen here — selection.Apply does that separately, per
// spec.md's clean split between C4 and C5.
func Group(ctx context.Context, records []model.FileRecord, cfg Config) ([]model.DuplicateSet, []FileError) {
	bySize := make(map[int64][]model.FileRecord)
	for _, r := range records {
		bySize[r.SizeBytes] = append(bySize[r.SizeBytes], r)
	}

	var toHash []model.FileRecord
	for _, bucket := range bySize {
		if len(bucket) < 2 {
			continue
		}
		toHash = append(toHash, bucket...)
	}

	if len(toHash) == 0 {
		return nil, nil
	}

	in := make(chan model.FileRecord, len(toHash))
	for _, r := range toHash {
		in <- r
	}
	close(in)

	out := hashengine.Run(ctx, in, hashengine.Config{
		Algorithm:   cfg.Algorithm,
		Parallelism: cfg.Parallelism,
		FastMode:    cfg.FastMode,
		Cache:       cfg.Cache,
	})

	// groupKey mirrors spec.md §3's DuplicateSet identity: two records
	// only belong together if they share both size and digest. Keying
	// on digest alone would let a collision under a weak algorithm
	// (crc32, fnv1a, the gxhash approximation) merge files of
	// different sizes into one set, even though bySize above already
	// partitioned by size before hashing.
	type groupKey struct {
		size   int64
		digest string
	}

	byDigest := make(map[groupKey][]model.FileRecord)
	digestOf := make(map[groupKey]model.Digest)
	var errs []FileError

	for res := range out {
		if res.Err != nil {
			errs = append(errs, FileError{Record: res.Record, Err: res.Err})
			continue
		}
		key := groupKey{size: res.Record.SizeBytes, digest: res.Digest.Hex()}
		byDigest[key] = append(byDigest[key], res.Record)
		digestOf[key] = res.Digest
	}

	var sets []model.DuplicateSet
	for key, files := range byDigest {
		if len(files) < 2 {
			continue
		}
		sets = append(sets, model.DuplicateSet{
			Digest: digestOf[key],
			Files:  files,
		})
	}

	return sets, errs
}
