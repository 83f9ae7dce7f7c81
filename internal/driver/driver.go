// Package driver is the orchestration layer external to the core
// dedup packages: it resolves roots, drives the walk/hash/group/select
// pipeline for local roots, delegates remote roots to the tunnel
// client, and only then hands the combined result to the action
// executor. Keeping this glue out of internal/dedup and friends is
// what lets those packages stay free of CLI and process concerns, the
// same separation the teacher draws between its cmd/ layer and its
// internal/devsync core.
package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"dupsync/internal/action"
	"dupsync/internal/dedup"
	"dupsync/internal/dedup/selection"
	"dupsync/internal/hashengine"
	"dupsync/internal/media"
	"dupsync/internal/model"
	"dupsync/internal/remote/client"
	"dupsync/internal/remote/resolver"
	"dupsync/internal/remote/wire"
	"dupsync/internal/report"
	"dupsync/internal/walker"
)

// LogFunc is the driver's logging seam, matching the plain
// printf-style logging the rest of this module uses.
type LogFunc func(format string, args ...any)

// RemoteOptions configures how the driver reaches a remote root.
type RemoteOptions struct {
	SSHCommand     string
	SSHConfigFile  string
	ServerCommand  string // the remote command line that starts the dupsync server subprocess
	RemotePort     int
	UseCompression bool

	// UseNativeSSH drives the tunnel with golang.org/x/crypto/ssh
	// (client.NativeSSHRunner) instead of shelling out to a real ssh
	// binary. IdentityFile is the private key path it authenticates
	// with; empty falls back to the running ssh-agent.
	UseNativeSSH bool
	IdentityFile string
}

// Options controls one end-to-end run.
type Options struct {
	RawRoots    []string
	Algorithm   model.Algorithm
	Parallelism int
	FastMode    bool
	Cache       hashengine.Cache
	Filter      *walker.Filter
	Selection   selection.Strategy

	DryRun      bool
	Delete      bool
	MoveToRoot  *model.Root
	CopyMissing bool

	// MediaMode enables C7: perceptual near-duplicate grouping joins
	// the byte-identical DuplicateSets dedup.Group produces, per
	// spec.md §2's data-flow. MediaThreshold is the minimum 0-100
	// similarity score for an edge; MediaRequireAllPairs selects the
	// stricter clique-only clustering variant.
	MediaMode            bool
	MediaThreshold       float64
	MediaRequireAllPairs bool
	// MediaResolutionPreference and MediaFormatPreference drive the
	// kept-member cascade media.SelectKept applies to each cluster
	// before it is merged into the combined report: resolution first,
	// then format, with opts.Selection as the final tie-break. See
	// media.SelectionConfig for the exact semantics.
	MediaResolutionPreference string
	MediaFormatPreference     []string

	Remote RemoteOptions
	Log    LogFunc
}

// RemoteReport pairs a resolved remote root with the self-contained
// report its server subprocess returned. Cross-root deduplication
// against local roots is intentionally not attempted for remote
// results: the wire protocol's Result frame carries a finished report,
// not raw per-file digests, so there is nothing to merge into the
// local digest space without a second protocol this module doesn't
// define. See DESIGN.md's open-question entry for C8-C11.
type RemoteReport struct {
	Root   model.Root
	Result wire.Result
}

// Outcome is everything a driver Run produces: the combined local
// report, one RemoteReport per remote root, and the action results if
// an action kind was requested.
type Outcome struct {
	LocalReport   report.Document
	RemoteReports []RemoteReport
	ActionResults []model.ActionResult
}

// Run resolves opts.RawRoots, dedups every local root together,
// drives every remote root independently, and — when an action was
// requested — executes the resulting actions. Under DryRun the actions
// still go through the executor, which performs no write and reports
// each of them as succeeded.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	logf := opts.Log
	if logf == nil {
		logf = func(string, ...any) {}
	}

	var roots []model.Root
	for i, raw := range opts.RawRoots {
		root, err := resolver.Resolve(i+1, raw)
		if err != nil {
			return Outcome{}, fmt.Errorf("driver: %w", err)
		}
		roots = append(roots, root)
	}
	if len(roots) > 0 {
		roots[len(roots)-1].IsTarget = opts.CopyMissing
	}

	var localRoots, remoteRoots []model.Root
	for _, r := range roots {
		if resolver.IsRemote(r) {
			remoteRoots = append(remoteRoots, r)
		} else {
			localRoots = append(localRoots, r)
		}
	}

	start := time.Now()
	var records []model.FileRecord
	for _, root := range localRoots {
		logf("scanning %s", root.String())
		for rec := range walker.Walk(ctx, root, walker.Options{Filter: opts.Filter, Workers: opts.Parallelism, Log: walker.LogFunc(logf)}) {
			records = append(records, rec)
		}
	}

	sets, fileErrs := dedup.Group(ctx, records, dedup.Config{
		Algorithm:   opts.Algorithm,
		Parallelism: opts.Parallelism,
		FastMode:    opts.FastMode,
		Cache:       opts.Cache,
	})
	for _, fe := range fileErrs {
		logf("hash error for %s: %v", fe.Record.AbsolutePath, fe.Err)
	}

	strategy := opts.Selection
	if strategy == "" {
		strategy = selection.NewestModified
	}
	sets, err := selection.ApplyAll(sets, strategy)
	if err != nil {
		return Outcome{}, fmt.Errorf("driver: %w", err)
	}

	if opts.MediaMode {
		mediaSets, err := mediaCluster(ctx, records, opts, strategy, logf)
		if err != nil {
			return Outcome{}, fmt.Errorf("driver: %w", err)
		}
		// Media sets carry their own resolution/format-preference kept
		// member already; they are appended after the byte-identical
		// ApplyAll pass rather than fed into it, so the generic C5
		// path/mtime strategy never overrides media's cascade.
		sets = append(sets, mediaSets...)
	}

	var bytesReclaimable int64
	for _, s := range sets {
		for _, c := range s.Candidates() {
			bytesReclaimable += c.SizeBytes
		}
	}

	stats := model.RunStats{
		FilesScanned:     int64(len(records)),
		DuplicateSets:    int64(len(sets)),
		BytesReclaimable: bytesReclaimable,
		PerFileErrors:    int64(len(fileErrs)),
		Elapsed:          time.Since(start),
	}
	for _, r := range records {
		stats.BytesScanned += r.SizeBytes
	}

	doc := report.BuildDocument(opts.Algorithm, localRoots, sets, stats)

	var remoteReports []RemoteReport
	for _, root := range remoteRoots {
		rr, err := runRemote(ctx, root, opts)
		if err != nil {
			logf("remote run against %s failed: %v", root.String(), err)
			continue
		}
		remoteReports = append(remoteReports, rr)
	}

	var actionResults []model.ActionResult
	if opts.Delete || opts.MoveToRoot != nil || opts.CopyMissing {
		actions := buildActions(sets, opts)
		if opts.CopyMissing {
			actions = append(actions, CopyMissingActions(ctx, records, roots)...)
		}
		rootsByID := make(map[int]model.Root, len(roots))
		for _, r := range roots {
			rootsByID[r.ID] = r
		}
		ex := action.New(rootsByID, &action.RsyncTransfer{SSHCommand: opts.Remote.SSHCommand, SSHConfigFile: opts.Remote.SSHConfigFile}, opts.DryRun, action.LogFunc(logf))
		actionResults = ex.Execute(ctx, actions)
	}

	return Outcome{LocalReport: doc, RemoteReports: remoteReports, ActionResults: actionResults}, nil
}

// mediaCluster fingerprints records per Kind, clusters them into
// near-duplicate groups, and resolves each group's kept member through
// the resolution/format preference cascade, falling back to fallback
// (the same strategy the byte-identical sets already resolved under)
// when neither preference breaks the tie. The result is the same
// DuplicateSet shape dedup.Group produces, ready to append to sets.
func mediaCluster(ctx context.Context, records []model.FileRecord, opts Options, fallback selection.Strategy, logf LogFunc) ([]model.DuplicateSet, error) {
	items, fpErrs := media.FingerprintAll(ctx, records, media.DefaultFingerprinters())
	for _, fe := range fpErrs {
		logf("media fingerprint error for %s: %v", fe.Record.AbsolutePath, fe.Err)
	}
	clusters, err := media.Cluster(ctx, items, media.ClusterConfig{
		Threshold:       opts.MediaThreshold,
		RequireAllPairs: opts.MediaRequireAllPairs,
	})
	if err != nil {
		return nil, err
	}

	cfg := media.SelectionConfig{
		ResolutionPreference: opts.MediaResolutionPreference,
		FormatPreference:     opts.MediaFormatPreference,
	}
	sets := make([]model.DuplicateSet, 0, len(clusters))
	for _, c := range clusters {
		resolved, err := media.SelectKept(c, cfg, fallback)
		if err != nil {
			logf("media selection error: %v", err)
			continue
		}
		sets = append(sets, resolved)
	}
	return sets, nil
}

func buildActions(sets []model.DuplicateSet, opts Options) []model.Action {
	var actions []model.Action
	for _, s := range sets {
		for _, candidate := range s.Candidates() {
			switch {
			case opts.MoveToRoot != nil:
				actions = append(actions, model.Action{
					Kind:     model.ActionMoveTo,
					Target:   candidate,
					DestPath: destPathFor(*opts.MoveToRoot, candidate.RelativePath),
					DestRoot: opts.MoveToRoot,
				})
			case opts.Delete:
				actions = append(actions, model.Action{Kind: model.ActionDelete, Target: candidate})
			}
		}
	}
	return actions
}

// destPathFor renders the Action.DestPath the executor expects:
// an absolute local path when the destination root is local, and a
// root-relative path (handed to the RemoteTransfer capability) when
// it is remote.
func destPathFor(destRoot model.Root, relPath string) string {
	if destRoot.Kind == model.RootRemote {
		return relPath
	}
	return filepath.Join(destRoot.Path, relPath)
}

func runRemote(ctx context.Context, root model.Root, opts Options) (RemoteReport, error) {
	var runner client.SSHRunner = &client.ExecSSHRunner{SSHCommand: opts.Remote.SSHCommand}
	if opts.Remote.UseNativeSSH {
		runner = &client.NativeSSHRunner{IdentityFile: opts.Remote.IdentityFile}
	}
	sup := &client.Supervisor{Runner: runner, SSHConfigFile: opts.Remote.SSHConfigFile, BindAddr: "127.0.0.1"}

	remotePort := opts.Remote.RemotePort
	if remotePort == 0 {
		remotePort = client.DefaultPortOffset
	}
	serverCmd := opts.Remote.ServerCommand
	if serverCmd == "" {
		serverCmd = fmt.Sprintf("dupsync server --port %d", remotePort)
	}

	tun, err := sup.Open(ctx, root, remotePort, serverCmd)
	if err != nil {
		return RemoteReport{}, err
	}
	defer tun.Close()

	cmd := wire.Command{
		RootPath:                  root.Path,
		Algorithm:                 string(opts.Algorithm),
		Parallelism:               opts.Parallelism,
		FastMode:                  opts.FastMode,
		SelectionPolicy:           string(opts.Selection),
		DryRun:                    opts.DryRun,
		Media:                     opts.MediaMode,
		MediaThreshold:            opts.MediaThreshold,
		MediaRequireAllPairs:      opts.MediaRequireAllPairs,
		MediaResolutionPreference: opts.MediaResolutionPreference,
		MediaFormatPreference:     opts.MediaFormatPreference,
	}
	logf := opts.Log
	if logf == nil {
		logf = func(string, ...any) {}
	}
	onProgress := func(p wire.Progress) {
		logf("%s: %s (%d files, %.0f%%)", root.String(), p.Stage, p.FilesScanned, p.PercentDone)
	}
	result, err := sup.RunCommand(ctx, tun, cmd, opts.Remote.UseCompression, onProgress)
	if err != nil {
		return RemoteReport{}, err
	}
	return RemoteReport{Root: root, Result: result}, nil
}
