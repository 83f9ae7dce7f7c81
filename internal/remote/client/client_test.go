package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"dupsync/internal/model"
)

// fakeRunner pretends to start an ssh -L forward by instead listening
// on the requested local port itself, so tests exercise the
// readiness-polling and teardown logic without a real ssh binary.
type fakeRunner struct {
	listeners []net.Listener
}

func (f *fakeRunner) Start(ctx context.Context, args []string) (func(), io.Reader, error) {
	localAddr := extractDashLTarget(args)
	ln, err := net.Listen("tcp", localAddr)
	if err != nil {
		return nil, nil, err
	}
	f.listeners = append(f.listeners, ln)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	stop := func() { ln.Close() }
	return stop, bytes.NewReader(nil), nil
}

// extractDashLTarget pulls "bind:port" out of a "-L bind:port:remotehost:remoteport" arg pair.
func extractDashLTarget(args []string) string {
	for i, a := range args {
		if a == "-L" && i+1 < len(args) {
			spec := args[i+1]
			// bind:port:remotehost:remoteport -> first two fields
			colon1 := indexByte(spec, ':')
			colon2 := indexByte(spec[colon1+1:], ':') + colon1 + 1
			return spec[:colon2]
		}
	}
	return ""
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func TestSupervisorOpenWaitsForReadyPort(t *testing.T) {
	runner := &fakeRunner{}
	sup := &Supervisor{Runner: runner, BindAddr: "127.0.0.1"}
	root := model.Root{Kind: model.RootRemote, Host: "example.invalid"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tun, err := sup.Open(ctx, root, 9999, "dupsync server --port 9999")
	if err != nil {
		t.Fatal(err)
	}
	defer tun.Close()
	if tun.LocalPort < DefaultPortOffset {
		t.Errorf("expected a local port >= %d, got %d", DefaultPortOffset, tun.LocalPort)
	}
}

func TestParseDegradedResultExtractsSummaryLine(t *testing.T) {
	output := "connecting...\nREMOTE_RESULT sets=7 bytes=102400\ndone\n"
	sets, bytesReclaimable, ok := ParseDegradedResult(output)
	if !ok {
		t.Fatal("expected to parse a degraded result line")
	}
	if sets != 7 || bytesReclaimable != 102400 {
		t.Errorf("got sets=%d bytes=%d", sets, bytesReclaimable)
	}
}

func TestParseDegradedResultNoMatch(t *testing.T) {
	_, _, ok := ParseDegradedResult("no summary line here")
	if ok {
		t.Error("expected no match")
	}
}
