// Package server implements C10: the remote dedup-server subprocess.
// It binds a loopback port, accepts exactly one connection, handshakes
// with the tunnel client, runs the dedup pipeline against its local
// roots and streams Progress/Result frames back, mirroring the
// bind-accept-serve-one-connection shape of the teacher's sub_app
// agent.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"dupsync/internal/dedup"
	"dupsync/internal/dedup/selection"
	"dupsync/internal/hashengine"
	"dupsync/internal/media"
	"dupsync/internal/model"
	"dupsync/internal/remote/wire"
	"dupsync/internal/report"
	"dupsync/internal/walker"
)

// progressInterval bounds how often Progress frames are emitted,
// matching spec.md's ~10Hz ceiling.
const progressInterval = 100 * time.Millisecond

// Cache is the subset of hashcache.Cache the server needs; kept as an
// interface so a run can be exercised in tests without a real sqlite
// file.
type Cache = hashengine.Cache

// Config configures one server invocation.
type Config struct {
	BindAddr  string // loopback address, e.g. "127.0.0.1"
	Port      int
	Cache     Cache
	Logger    *log.Logger
	IndexPath string // optional: where to persist this run's file index (see index.go)
}

// Serve binds, accepts one connection, and runs exactly one
// command/result exchange before returning. ctx cancellation forces
// the listener and any in-flight run to unwind.
func Serve(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("server: accept: %w", err)
	}
	defer conn.Close()

	return serveConn(ctx, conn, cfg)
}

func serveConn(ctx context.Context, conn net.Conn, cfg Config) error {
	codec := wire.Codec{Encoding: wire.EncodingTextual}

	helloFrame, err := wire.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("server: read hello: %w", err)
	}
	var hello wire.Hello
	if err := codec.Unmarshal(helloFrame.Payload, &hello); err != nil {
		return fmt.Errorf("server: decode hello: %w", err)
	}
	if hello.Compression {
		codec.Compression = true
	}
	if cfg.Logger != nil && hello.SessionID != "" {
		cfg.Logger.Printf("session %s: hello received (compression=%v)", hello.SessionID, codec.Compression)
	}
	reply, _ := codec.Marshal(wire.Hello{ProtocolVersion: wire.ProtocolVersion, Compression: codec.Compression, SessionID: hello.SessionID})
	if err := wire.WriteFrame(conn, wire.Frame{Type: wire.TypeCommand, Payload: reply}); err != nil {
		return fmt.Errorf("server: write hello reply: %w", err)
	}

	bodyReader, err := codec.WrapReader(conn)
	if err != nil {
		return fmt.Errorf("server: wrap reader: %w", err)
	}
	cmdFrame, err := wire.ReadFrame(bodyReader)
	if err != nil {
		return fmt.Errorf("server: read command: %w", err)
	}
	var cmd wire.Command
	if err := codec.Unmarshal(cmdFrame.Payload, &cmd); err != nil {
		return fmt.Errorf("server: decode command: %w", err)
	}

	bodyWriter, err := codec.WrapWriter(conn)
	if err != nil {
		return fmt.Errorf("server: wrap writer: %w", err)
	}

	result, runErr := runPipeline(ctx, bodyWriter, codec, cmd, cfg)
	if runErr != nil {
		errPayload, _ := codec.Marshal(wire.Error{Kind: "pipeline", Message: runErr.Error()})
		_ = wire.WriteFrame(bodyWriter, wire.Frame{Type: wire.TypeError, Payload: errPayload})
		return bodyWriter.Close()
	}
	resultPayload, _ := codec.Marshal(result)
	if err := wire.WriteFrame(bodyWriter, wire.Frame{Type: wire.TypeResult, Payload: resultPayload}); err != nil {
		return err
	}
	return bodyWriter.Close()
}

func runPipeline(ctx context.Context, body wire.FlushWriteCloser, codec wire.Codec, cmd wire.Command, cfg Config) (wire.Result, error) {
	start := time.Now()
	root := model.Root{ID: 1, Kind: model.RootLocal, Path: cmd.RootPath}
	filter := walker.NewFilter(cmd.IncludeGlobs, cmd.ExcludeGlobs)

	var records []model.FileRecord
	lastEmit := time.Now()
	for rec := range walker.Walk(ctx, root, walker.Options{Filter: filter, Workers: 4}) {
		records = append(records, rec)
		if time.Since(lastEmit) >= progressInterval {
			emitProgress(body, codec, len(records), sumBytes(records), "scanning")
			lastEmit = time.Now()
		}
	}

	sets, _ := dedup.Group(ctx, records, dedup.Config{
		Algorithm:   model.Algorithm(cmd.Algorithm),
		Parallelism: cmd.Parallelism,
		FastMode:    cmd.FastMode,
		Cache:       cfg.Cache,
	})
	emitProgress(body, codec, len(records), sumBytes(records), "grouping")

	strategy := selection.Strategy(cmd.SelectionPolicy)
	if strategy == "" {
		strategy = selection.NewestModified
	}
	sets, err := selection.ApplyAll(sets, strategy)
	if err != nil {
		return wire.Result{}, err
	}

	if cmd.Media {
		items, fpErrs := media.FingerprintAll(ctx, records, media.DefaultFingerprinters())
		for _, fe := range fpErrs {
			if cfg.Logger != nil {
				cfg.Logger.Printf("media fingerprint error for %s: %v", fe.Record.AbsolutePath, fe.Err)
			}
		}
		clusters, err := media.Cluster(ctx, items, media.ClusterConfig{
			Threshold:       cmd.MediaThreshold,
			RequireAllPairs: cmd.MediaRequireAllPairs,
		})
		if err != nil {
			return wire.Result{}, err
		}
		mediaCfg := media.SelectionConfig{
			ResolutionPreference: cmd.MediaResolutionPreference,
			FormatPreference:     cmd.MediaFormatPreference,
		}
		for _, c := range clusters {
			resolved, err := media.SelectKept(c, mediaCfg, strategy)
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Printf("media selection error: %v", err)
				}
				continue
			}
			sets = append(sets, resolved)
		}
		emitProgress(body, codec, len(records), sumBytes(records), "media-clustering")
	}

	var bytesReclaimable int64
	digestByPath := make(map[string]string, len(sets))
	for _, s := range sets {
		for _, f := range s.Files {
			digestByPath[f.AbsolutePath] = s.Digest.Hex()
		}
		for _, c := range s.Candidates() {
			bytesReclaimable += c.SizeBytes
		}
	}
	if err := saveIndex(cfg.IndexPath, records, digestByPath); err != nil && cfg.Logger != nil {
		cfg.Logger.Printf("index: %v", err)
	}

	doc := report.BuildDocument(model.Algorithm(cmd.Algorithm), []model.Root{root}, sets, model.RunStats{
		FilesScanned:     int64(len(records)),
		BytesScanned:     sumBytes(records),
		DuplicateSets:    int64(len(sets)),
		BytesReclaimable: bytesReclaimable,
		Elapsed:          time.Since(start),
	})
	reportJSON, err := report.MarshalJSON(doc)
	if err != nil {
		return wire.Result{}, err
	}

	return wire.Result{
		DuplicateSets:    len(sets),
		BytesReclaimable: bytesReclaimable,
		Elapsed:          time.Since(start),
		ReportJSON:       reportJSON,
	}, nil
}

func emitProgress(body wire.FlushWriteCloser, codec wire.Codec, files int, bytesScanned int64, stage string) {
	payload, err := codec.Marshal(wire.Progress{FilesScanned: int64(files), BytesScanned: bytesScanned, Stage: stage})
	if err != nil {
		return
	}
	if err := wire.WriteFrame(body, wire.Frame{Type: wire.TypeProgress, Payload: payload}); err != nil {
		return
	}
	_ = body.Flush()
}

func sumBytes(records []model.FileRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.SizeBytes
	}
	return total
}
