// Package walker implements C1: it enumerates every regular file
// under a Root, applies an include/exclude Filter, and emits
// model.FileRecord values. It never follows symlinks and relies on
// fastwalk's own dev/inode tracking for directory-loop protection.
package walker

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/charlievieth/fastwalk"

	"dupsync/internal/model"
)

// LogFunc receives a human-readable LogLine for a per-entry error that
// was skipped rather than treated as fatal.
type LogFunc func(format string, args ...any)

// Options configures a single walk.
type Options struct {
	Filter *Filter
	// Workers bounds fastwalk's internal directory-reader
	// concurrency; zero means fastwalk picks a default.
	Workers int
	Log     LogFunc
}

func noopLog(string, ...any) {}

// Walk starts a background scan of root and returns a channel of
// FileRecords. The channel is closed once the walk finishes (normally,
// on error, or on ctx cancellation). Ordering is unspecified.
func Walk(ctx context.Context, root model.Root, opts Options) <-chan model.FileRecord {
	if opts.Log == nil {
		opts.Log = noopLog
	}
	out := make(chan model.FileRecord, 1024)

	go func() {
		defer close(out)

		absRoot, err := filepath.Abs(root.Path)
		if err != nil {
			opts.Log("walker: resolve root %s: %v", root.Path, err)
			return
		}

		conf := &fastwalk.Config{
			Follow:      false,
			NumWorkers:  opts.Workers,
		}

		walkErr := fastwalk.Walk(conf, absRoot, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				opts.Log("walker: %s: %v", path, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				opts.Log("walker: stat %s: %v", path, err)
				return nil
			}

			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			rel = filepath.ToSlash(rel)

			if !opts.Filter.Match(rel) {
				return nil
			}

			rec := model.FileRecord{
				RootID:       root.ID,
				RelativePath: rel,
				AbsolutePath: path,
				SizeBytes:    info.Size(),
				ModTime:      info.ModTime(),
				ChangeTime:   changeTime(info),
			}

			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if walkErr != nil && walkErr != ctx.Err() {
			opts.Log("walker: %s: %v", absRoot, walkErr)
		}
	}()

	return out
}
