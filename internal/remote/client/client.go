// Package client implements C11: the tunnel supervisor that drives a
// remote dedup-server subprocess over an ssh -L port forward. It
// follows the same ssh-as-a-subprocess, poll-until-alive idiom as the teacher's internal/sshforward.Runner, adapted from
// managing N persistent port forwards to managing exactly one
// short-lived tunnel per remote root.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"dupsync/internal/model"
	"dupsync/internal/remote/wire"
	"dupsync/internal/util"
)

// DefaultPortOffset is where the free-port probe starts, matching
// spec.md's default tunnel port range.
const DefaultPortOffset = 29875

// PortProbeAttempts bounds how many ports above DefaultPortOffset are
// tried before giving up.
const PortProbeAttempts = 64

// readyRetries and readyBackoff bound how long the supervisor waits
// for the forwarded port to accept connections: up to 30 probes with a
// fixed 500ms sleep between them (about 15s of sleeping in total); the
// interval does not grow between attempts.
const (
	readyRetries = 30
	readyBackoff = 500 * time.Millisecond
)

// SSHRunner is the capability the supervisor drives an ssh subprocess
// through; split out as an interface so tunnel lifecycle tests don't
// need a real ssh binary, the same adapter-seam shape as the
// teacher's deployagent.SSHClient.
type SSHRunner interface {
	// Start launches `ssh <args...>` and returns once the process has
	// been started (not necessarily ready), along with a function that
	// terminates it.
	Start(ctx context.Context, args []string) (stop func(), stderr io.Reader, err error)
}

// ExecSSHRunner is the default SSHRunner, shelling out to a real ssh
// binary exactly like sshforward.Runner does.
type ExecSSHRunner struct {
	SSHCommand string
}

func (r *ExecSSHRunner) Start(ctx context.Context, args []string) (func(), io.Reader, error) {
	bin := r.SSHCommand
	if bin == "" {
		bin = "ssh"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("client: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("client: start ssh: %w", err)
	}
	stop := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}
	return stop, stderr, nil
}

// Tunnel is a live ssh -L forward plus the remote server process it
// started on the far end.
type Tunnel struct {
	LocalPort int
	stop      func()
}

// Close tears down the tunnel's ssh subprocess.
func (t *Tunnel) Close() {
	if t.stop != nil {
		t.stop()
	}
}

// Supervisor opens tunnels and drives remote runs through them.
type Supervisor struct {
	Runner        SSHRunner
	SSHCommand    string
	SSHConfigFile string
	BindAddr      string
}

func New() *Supervisor {
	return &Supervisor{Runner: &ExecSSHRunner{}, BindAddr: "127.0.0.1"}
}

// Open probes a free local port, starts `ssh -L <port>:127.0.0.1:<remotePort> ... <host> <remoteCommand>`,
// and waits for the forwarded port to accept a connection before
// returning. remoteCommand is expected to start the remote dedup
// server subprocess bound to remotePort on the far side.
func (s *Supervisor) Open(ctx context.Context, root model.Root, remotePort int, remoteCommand string) (*Tunnel, error) {
	bindAddr := s.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	localPort, err := util.FreePortAbove(bindAddr, DefaultPortOffset, PortProbeAttempts)
	if err != nil {
		return nil, fmt.Errorf("client: no free local port found: %w", err)
	}

	args := s.buildArgs(root, bindAddr, localPort, remotePort, remoteCommand)
	stop, stderr, err := s.Runner.Start(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("client: start tunnel: %w", err)
	}

	tun := &Tunnel{LocalPort: localPort, stop: stop}
	if err := waitReady(ctx, bindAddr, localPort); err != nil {
		tun.Close()
		return nil, fmt.Errorf("client: tunnel to %s never became ready: %w (%s)", root.String(), err, drainStderr(stderr))
	}
	return tun, nil
}

func (s *Supervisor) buildArgs(root model.Root, bindAddr string, localPort, remotePort int, remoteCommand string) []string {
	var args []string
	if s.SSHConfigFile != "" {
		args = append(args, "-F", s.SSHConfigFile)
	}
	if root.Port != "" {
		args = append(args, "-p", root.Port)
	}
	args = append(args, root.SSHOptions...)
	args = append(args, "-L", fmt.Sprintf("%s:%d:127.0.0.1:%d", bindAddr, localPort, remotePort))
	args = append(args, "-T", "-o", "ExitOnForwardFailure=yes")

	host := root.Host
	if root.User != "" {
		host = root.User + "@" + host
	}
	args = append(args, host, remoteCommand)
	return args
}

func waitReady(ctx context.Context, bindAddr string, port int) error {
	addr := fmt.Sprintf("%s:%d", bindAddr, port)
	for i := 0; i < readyRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if probeErr := util.DialProbe(addr); probeErr == nil {
			return nil
		}
		time.Sleep(readyBackoff)
	}
	return fmt.Errorf("timed out after %v", time.Duration(readyRetries)*readyBackoff)
}

func drainStderr(r io.Reader) string {
	if r == nil {
		return ""
	}
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && len(lines) < 10 {
		lines = append(lines, scanner.Text())
	}
	return strings.Join(lines, "; ")
}

// ProgressFunc receives each Progress frame the server streams while
// the remote pipeline runs. It is called synchronously from the frame
// read loop below, so it must not block.
type ProgressFunc func(wire.Progress)

// RunCommand drives one full request/response exchange over an open
// tunnel using the wire protocol. onProgress, if non-nil, is invoked
// for every Progress frame the server emits; pass nil to discard them.
func (s *Supervisor) RunCommand(ctx context.Context, tun *Tunnel, cmd wire.Command, compression bool, onProgress ProgressFunc) (wire.Result, error) {
	conn, err := util.DialTimeout(fmt.Sprintf("%s:%d", s.bindAddrOrDefault(), tun.LocalPort), 10*time.Second)
	if err != nil {
		return wire.Result{}, fmt.Errorf("client: connect to tunnel: %w", err)
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	codec := wire.Codec{Encoding: wire.EncodingTextual, Compression: compression}
	helloPayload, _ := codec.Marshal(wire.Hello{ProtocolVersion: wire.ProtocolVersion, Compression: compression, SessionID: sessionID})
	if err := wire.WriteFrame(conn, wire.Frame{Type: wire.TypeCommand, Payload: helloPayload}); err != nil {
		return wire.Result{}, fmt.Errorf("client: send hello: %w", err)
	}
	helloReplyFrame, err := wire.ReadFrame(conn)
	if err != nil {
		return wire.Result{}, fmt.Errorf("client: read hello reply: %w", err)
	}
	var helloReply wire.Hello
	_ = codec.Unmarshal(helloReplyFrame.Payload, &helloReply)
	if helloReply.SessionID != "" && helloReply.SessionID != sessionID {
		return wire.Result{}, fmt.Errorf("client: session id mismatch in hello reply (sent %s, got %s)", sessionID, helloReply.SessionID)
	}
	// The server echoes back whether it actually honored compression;
	// every frame from here on shares that one negotiated codec.
	codec.Compression = helloReply.Compression

	bodyWriter, err := codec.WrapWriter(conn)
	if err != nil {
		return wire.Result{}, fmt.Errorf("client: wrap writer: %w", err)
	}
	bodyReader, err := codec.WrapReader(conn)
	if err != nil {
		return wire.Result{}, fmt.Errorf("client: wrap reader: %w", err)
	}

	cmdPayload, _ := codec.Marshal(cmd)
	if err := wire.WriteFrame(bodyWriter, wire.Frame{Type: wire.TypeCommand, Payload: cmdPayload}); err != nil {
		return wire.Result{}, fmt.Errorf("client: send command: %w", err)
	}
	// The client writes exactly one frame on this codec (the command);
	// closing now flushes it and, under compression, finalizes the
	// zstd stream so the server's reader can decode it.
	if err := bodyWriter.Close(); err != nil {
		return wire.Result{}, fmt.Errorf("client: close command stream: %w", err)
	}

	for {
		frame, err := wire.ReadFrame(bodyReader)
		if err != nil {
			return wire.Result{}, fmt.Errorf("client: read frame: %w", err)
		}
		switch frame.Type {
		case wire.TypeProgress:
			if onProgress != nil {
				var p wire.Progress
				if err := codec.Unmarshal(frame.Payload, &p); err == nil {
					onProgress(p)
				}
			}
			continue
		case wire.TypeResult:
			var result wire.Result
			if err := codec.Unmarshal(frame.Payload, &result); err != nil {
				return wire.Result{}, fmt.Errorf("client: decode result: %w", err)
			}
			return result, nil
		case wire.TypeError:
			var remoteErr wire.Error
			_ = codec.Unmarshal(frame.Payload, &remoteErr)
			return wire.Result{}, fmt.Errorf("client: remote error (%s): %s", remoteErr.Kind, remoteErr.Message)
		default:
			continue
		}
	}
}

func (s *Supervisor) bindAddrOrDefault() string {
	if s.BindAddr != "" {
		return s.BindAddr
	}
	return "127.0.0.1"
}

// stdoutFallbackPattern recognizes a line such as
// "REMOTE_RESULT sets=3 bytes=10240" that a remote server might print
// to its own stdout when invoked without the wire protocol at all.
var stdoutFallbackPattern = regexp.MustCompile(`^REMOTE_RESULT\s+sets=(\d+)\s+bytes=(\d+)`)

// ParseDegradedResult scans output for the first REMOTE_RESULT summary
// line and returns its set count and reclaimable bytes. It only parses:
// Supervisor has no method that runs a remote command without a tunnel,
// no setting selects this path, and only this package's tests call it.
func ParseDegradedResult(output string) (sets int, bytesReclaimable int64, ok bool) {
	for _, line := range strings.Split(output, "\n") {
		m := stdoutFallbackPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		var s, b int64
		fmt.Sscanf(m[1], "%d", &s)
		fmt.Sscanf(m[2], "%d", &b)
		return int(s), b, true
	}
	return 0, 0, false
}
