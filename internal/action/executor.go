// Package action implements C6: it executes a batch of Actions
// (Delete, MoveTo, CopyTo) honoring dry-run mode, with per-action
// errors that never abort the rest of the batch.
package action

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"dupsync/internal/direrr"
	"dupsync/internal/model"
)

// RemoteTransfer is the capability C6 depends on whenever an Action
// touches a remote root; a concrete provider (RsyncTransfer) is
// composed in at construction time so tests can substitute a fake.
type RemoteTransfer interface {
	CopyTo(ctx context.Context, localPath string, dst model.Root, dstRelPath string) error
	CopyFrom(ctx context.Context, src model.Root, srcRelPath string, localPath string) error
	Delete(ctx context.Context, root model.Root, relPath string) error
}

// LogFunc receives a LogLine for a non-fatal per-action condition
// (e.g. a vanished file).
type LogFunc func(format string, args ...any)

// Executor runs Action batches.
type Executor struct {
	Roots  map[int]model.Root
	Remote RemoteTransfer
	DryRun bool
	Log    LogFunc
}

func noopLog(string, ...any) {}

// New constructs an Executor. roots maps a FileRecord's RootID to its
// resolved Root so the executor can tell a local target from a remote
// one.
func New(roots map[int]model.Root, remote RemoteTransfer, dryRun bool, log LogFunc) *Executor {
	if log == nil {
		log = noopLog
	}
	return &Executor{Roots: roots, Remote: remote, DryRun: dryRun, Log: log}
}

// Execute runs every action in the batch, serially, in the order
// given. Dry-run mode performs no write and reports every action as
// succeeded, without checking whether a real run would skip or fail it.
func (e *Executor) Execute(ctx context.Context, actions []model.Action) []model.ActionResult {
	results := make([]model.ActionResult, len(actions))
	for i, act := range actions {
		select {
		case <-ctx.Done():
			results[i] = model.ActionResult{Action: act, Err: ctx.Err()}
			continue
		default:
		}

		if e.DryRun {
			results[i] = model.ActionResult{Action: act}
			continue
		}

		results[i] = e.executeOne(ctx, act)
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, act model.Action) model.ActionResult {
	switch act.Kind {
	case model.ActionDelete:
		return e.executeDelete(ctx, act)
	case model.ActionMoveTo:
		return e.executeMoveTo(ctx, act)
	case model.ActionCopyTo:
		return e.executeCopyTo(ctx, act)
	default:
		return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, "", errors.New("unknown action kind"))}
	}
}

func (e *Executor) rootOf(rec model.FileRecord) model.Root {
	if r, ok := e.Roots[rec.RootID]; ok {
		return r
	}
	return model.Root{Kind: model.RootLocal}
}

func (e *Executor) executeDelete(ctx context.Context, act model.Action) model.ActionResult {
	root := e.rootOf(act.Target)
	if root.Kind == model.RootRemote {
		if e.Remote == nil {
			return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, errors.New("no remote transfer capability configured"))}
		}
		if err := e.Remote.Delete(ctx, root, act.Target.RelativePath); err != nil {
			return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
		}
		return model.ActionResult{Action: act}
	}

	err := os.Remove(act.Target.AbsolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			e.Log("action: delete %s: file already gone", act.Target.AbsolutePath)
			return model.ActionResult{Action: act, Skipped: true}
		}
		return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
	}
	return model.ActionResult{Action: act}
}

func (e *Executor) executeMoveTo(ctx context.Context, act model.Action) model.ActionResult {
	srcRoot := e.rootOf(act.Target)
	dstRemote := act.DestRoot != nil && act.DestRoot.Kind == model.RootRemote

	if srcRoot.Kind == model.RootLocal && !dstRemote {
		if err := moveLocal(act.Target.AbsolutePath, act.DestPath); err != nil {
			return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
		}
		return model.ActionResult{Action: act}
	}

	if e.Remote == nil {
		return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, errors.New("no remote transfer capability configured"))}
	}

	if err := e.transferCrossRoot(ctx, act); err != nil {
		return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
	}

	// MoveTo deletes the source after a successful transfer.
	if srcRoot.Kind == model.RootRemote {
		if err := e.Remote.Delete(ctx, srcRoot, act.Target.RelativePath); err != nil {
			return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
		}
	} else if err := os.Remove(act.Target.AbsolutePath); err != nil && !os.IsNotExist(err) {
		return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
	}
	return model.ActionResult{Action: act}
}

func (e *Executor) executeCopyTo(ctx context.Context, act model.Action) model.ActionResult {
	srcRoot := e.rootOf(act.Target)
	dstRemote := act.DestRoot != nil && act.DestRoot.Kind == model.RootRemote

	if srcRoot.Kind == model.RootLocal && !dstRemote {
		if err := copyLocal(act.Target.AbsolutePath, act.DestPath); err != nil {
			return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
		}
		return model.ActionResult{Action: act}
	}

	if e.Remote == nil {
		return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, errors.New("no remote transfer capability configured"))}
	}
	if err := e.transferCrossRoot(ctx, act); err != nil {
		return model.ActionResult{Action: act, Err: direrr.New(direrr.KindAction, act.Target.AbsolutePath, err)}
	}
	return model.ActionResult{Action: act}
}

func (e *Executor) transferCrossRoot(ctx context.Context, act model.Action) error {
	srcRoot := e.rootOf(act.Target)
	switch {
	case srcRoot.Kind == model.RootLocal && act.DestRoot != nil && act.DestRoot.Kind == model.RootRemote:
		return e.Remote.CopyTo(ctx, act.Target.AbsolutePath, *act.DestRoot, act.DestPath)
	case srcRoot.Kind == model.RootRemote && (act.DestRoot == nil || act.DestRoot.Kind == model.RootLocal):
		return e.Remote.CopyFrom(ctx, srcRoot, act.Target.RelativePath, act.DestPath)
	case srcRoot.Kind == model.RootRemote && act.DestRoot != nil && act.DestRoot.Kind == model.RootRemote:
		// remote-to-remote: stage through a local temp file.
		tmp, err := os.CreateTemp("", "dupsync-relay-*")
		if err != nil {
			return err
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)
		if err := e.Remote.CopyFrom(ctx, srcRoot, act.Target.RelativePath, tmpPath); err != nil {
			return err
		}
		return e.Remote.CopyTo(ctx, tmpPath, *act.DestRoot, act.DestPath)
	default:
		return errors.New("unsupported cross-root transfer combination")
	}
}

// moveLocal renames within the same filesystem, falling back to
// copy-then-delete across filesystems (EXDEV), matching spec.md §4.6.
func moveLocal(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	if err := copyLocal(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyLocal performs a content copy preserving mtime, writing to a
// temp file in the destination directory and renaming into place so
// a concurrent reader never observes a partial file.
func copyLocal(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".dupsync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chtimes(tmpPath, time.Now(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return isCrossDeviceErrno(linkErr.Err)
	}
	return false
}

// execLookPath wraps exec.LookPath for binary discovery; it is a plain
// function, not a variable tests can replace.
func execLookPath(name string) (string, error) {
	return exec.LookPath(name)
}
