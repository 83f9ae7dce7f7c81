// Package hashengine implements C2: a work-stealing pool of workers
// that computes a content digest per FileRecord, consulting and
// updating a Cache (C3) when fast mode is enabled.
package hashengine

import (
	"context"
	"io"
	"os"
	"runtime"

	"dupsync/internal/model"
)

// Cache is the capability C2 depends on for fast-mode short-circuiting.
// internal/hashcache.Cache satisfies this.
type Cache interface {
	Lookup(rec model.FileRecord, algo model.Algorithm) (model.Digest, bool)
	Store(rec model.FileRecord, digest model.Digest) error
}

// Result is the digest (or error) produced for one FileRecord.
type Result struct {
	Record model.FileRecord
	Digest model.Digest
	Err    error
}

// Config controls a hash run.
type Config struct {
	Algorithm   model.Algorithm
	Parallelism int  // 0 means runtime.NumCPU()
	FastMode    bool // whether Cache is consulted at all
	Cache       Cache
}

const readChunkSize = 256 * 1024

// Run starts Config.Parallelism workers pulling from in and returns a
// channel of Results, closed once every input record has been
// processed or ctx is cancelled. Per-file errors are sent as Results
// with Err set; they never abort the run.
func Run(ctx context.Context, in <-chan model.FileRecord, cfg Config) <-chan Result {
	workers := cfg.Parallelism
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	out := make(chan Result, workers*2)

	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				case rec, ok := <-in:
					if !ok {
						return
					}
					res := hashOne(rec, cfg)
					select {
					case out <- res:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		for i := 0; i < workers; i++ {
			<-done
		}
		close(out)
	}()

	return out
}

func hashOne(rec model.FileRecord, cfg Config) Result {
	if cfg.FastMode && cfg.Cache != nil {
		if d, ok := cfg.Cache.Lookup(rec, cfg.Algorithm); ok {
			return Result{Record: rec, Digest: d}
		}
	}

	digest, err := digestFile(rec.AbsolutePath, cfg.Algorithm)
	if err != nil {
		return Result{Record: rec, Err: err}
	}

	if cfg.FastMode && cfg.Cache != nil {
		_ = cfg.Cache.Store(rec, digest)
	}

	return Result{Record: rec, Digest: digest}
}

// digestFile streams path through the named algorithm in fixed-size
// chunks; for a zero-length file this yields the algorithm's digest
// of the empty byte sequence without ever calling Write.
func digestFile(path string, algo model.Algorithm) (model.Digest, error) {
	h, err := newHash(algo)
	if err != nil {
		return model.Digest{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return model.Digest{}, err
	}
	defer f.Close()

	buf := make([]byte, readChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return model.Digest{}, err
	}

	return model.Digest{Algorithm: algo, Bytes: h.Sum(nil)}, nil
}
