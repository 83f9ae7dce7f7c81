package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// NativeSSHRunner is an SSHRunner that drives the tunnel itself via
// golang.org/x/crypto/ssh instead of shelling out to a real ssh
// binary, the same key-based ssh.ClientConfig/ssh.Dial connection the
// teacher's devsync/sshclient.SSHClient establishes for its own
// deploy-time connections. It accepts the identical ssh(1)-style argv
// Supervisor.buildArgs produces so it's a drop-in alternative to
// ExecSSHRunner, not a second code path callers need to branch on.
type NativeSSHRunner struct {
	// IdentityFile is a private key path for authentication. Empty
	// means fall back to the running ssh-agent (SSH_AUTH_SOCK), the
	// same preference order a real ssh binary uses.
	IdentityFile string
	// User, if set, overrides any "user@" prefix embedded in the host
	// argument.
	User string
}

// Start parses args the way ssh(1) would: an optional "-F config"
// (ignored; native auth doesn't consult an ssh_config file),
// an optional "-p port", an "-L bind:localPort:dsthost:dstport" spec,
// and a trailing "host command" pair. It dials the host, opens a
// session that runs command, and proxies the local forward to
// dsthost:dstport over the same connection.
func (r *NativeSSHRunner) Start(ctx context.Context, args []string) (func(), io.Reader, error) {
	spec, err := parseSSHArgs(args)
	if err != nil {
		return nil, nil, fmt.Errorf("nativessh: %w", err)
	}

	auth, err := r.authMethods()
	if err != nil {
		return nil, nil, fmt.Errorf("nativessh: %w", err)
	}

	user := r.User
	if user == "" {
		user = spec.user
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(spec.host, spec.port), config)
	if err != nil {
		return nil, nil, fmt.Errorf("nativessh: dial %s: %w", spec.host, err)
	}

	session, err := conn.NewSession()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("nativessh: session: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("nativessh: stderr pipe: %w", err)
	}
	if err := session.Start(spec.remoteCommand); err != nil {
		session.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("nativessh: start %q: %w", spec.remoteCommand, err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(spec.bindAddr, spec.localPort))
	if err != nil {
		session.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("nativessh: listen: %w", err)
	}

	go acceptForwardLoop(listener, conn, net.JoinHostPort(spec.dstHost, spec.dstPort))

	stop := func() {
		listener.Close()
		session.Close()
		conn.Close()
	}
	return stop, stderr, nil
}

// authMethods mirrors devsync/sshclient.NewSSHClient's key-file
// loading, falling back to the ssh-agent socket when no identity file
// is configured.
func (r *NativeSSHRunner) authMethods() ([]ssh.AuthMethod, error) {
	if r.IdentityFile != "" {
		key, err := os.ReadFile(r.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse identity file: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("no identity file configured and SSH_AUTH_SOCK is unset")
	}
	agentConn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("dial ssh-agent: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers)}, nil
}

func acceptForwardLoop(listener net.Listener, conn *ssh.Client, dst string) {
	for {
		local, err := listener.Accept()
		if err != nil {
			return
		}
		go proxyForward(local, conn, dst)
	}
}

func proxyForward(local net.Conn, conn *ssh.Client, dst string) {
	defer local.Close()
	remote, err := conn.Dial("tcp", dst)
	if err != nil {
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() { io.Copy(remote, local); done <- struct{}{} }()
	go func() { io.Copy(local, remote); done <- struct{}{} }()
	<-done
}

type sshArgSpec struct {
	host          string
	port          string
	user          string
	bindAddr      string
	localPort     string
	dstHost       string
	dstPort       string
	remoteCommand string
}

// parseSSHArgs extracts the fields Supervisor.buildArgs encodes into
// ssh(1)-style argv: [-F cfg] [-p port] [sshOpts...] -L bind:local:dst:dstport
// -T -o ExitOnForwardFailure=yes [user@]host command.
func parseSSHArgs(args []string) (sshArgSpec, error) {
	var spec sshArgSpec
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-F":
			i++
		case "-p":
			i++
			spec.port = args[i]
		case "-L":
			i++
			if err := parseForwardSpec(args[i], &spec); err != nil {
				return spec, err
			}
		case "-T", "-o":
			if args[i] == "-o" {
				i++
			}
		default:
			if spec.host == "" {
				hostField := args[i]
				if at := strings.IndexByte(hostField, '@'); at >= 0 {
					spec.user = hostField[:at]
					hostField = hostField[at+1:]
				}
				spec.host = hostField
			} else if spec.remoteCommand == "" {
				spec.remoteCommand = args[i]
			}
		}
	}
	if spec.port == "" {
		spec.port = "22"
	}
	if spec.host == "" {
		return spec, fmt.Errorf("no host found in ssh argv")
	}
	return spec, nil
}

func parseForwardSpec(raw string, spec *sshArgSpec) error {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return fmt.Errorf("unrecognized -L forward spec %q", raw)
	}
	spec.bindAddr, spec.localPort, spec.dstHost, spec.dstPort = parts[0], parts[1], parts[2], parts[3]
	if _, err := strconv.Atoi(spec.localPort); err != nil {
		return fmt.Errorf("forward spec %q: bad local port: %w", raw, err)
	}
	return nil
}
