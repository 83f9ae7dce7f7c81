package action

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"dupsync/internal/model"
)

// RsyncTransfer is the default RemoteTransfer provider: it shells out
// to the rsync and ssh binaries, the same "drive a real CLI tool with
// a built-up argv" idiom the teacher uses for its ssh port-forward
// runner and for rsync-backed manual transfers.
type RsyncTransfer struct {
	// SSHCommand overrides the ssh binary path; empty means "ssh".
	SSHCommand string
	// SSHConfigFile, if set, is passed as "-F <path>" to both ssh and rsync.
	SSHConfigFile string
}

func (t *RsyncTransfer) sshBin() string {
	if t.SSHCommand != "" {
		return t.SSHCommand
	}
	return "ssh"
}

func remoteSpec(root model.Root, relPath string) string {
	host := root.Host
	if root.User != "" {
		host = root.User + "@" + host
	}
	return fmt.Sprintf("%s:%s", host, joinRemotePath(root.Path, relPath))
}

func joinRemotePath(base, rel string) string {
	base = strings.TrimSuffix(base, "/")
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return base
	}
	return base + "/" + rel
}

// rshArg builds the rsync "-e" argument forwarding the root's
// ssh_opts and any global ssh command/config overrides.
func (t *RsyncTransfer) rshArg(root model.Root) string {
	parts := []string{t.sshBin()}
	if t.SSHConfigFile != "" {
		parts = append(parts, "-F", t.SSHConfigFile)
	}
	if root.Port != "" {
		parts = append(parts, "-p", root.Port)
	}
	parts = append(parts, root.SSHOptions...)
	return strings.Join(parts, " ")
}

func (t *RsyncTransfer) rsyncArgs(root model.Root) []string {
	args := []string{"-az", "-e", t.rshArg(root)}
	args = append(args, root.RsyncOptions...)
	return args
}

// CopyTo uploads localPath to dst:relPath via rsync.
func (t *RsyncTransfer) CopyTo(ctx context.Context, localPath string, dst model.Root, relPath string) error {
	args := append(t.rsyncArgs(dst), localPath, remoteSpec(dst, relPath))
	return runCommand(ctx, "rsync", args)
}

// CopyFrom downloads src:relPath to localPath via rsync.
func (t *RsyncTransfer) CopyFrom(ctx context.Context, src model.Root, relPath string, localPath string) error {
	args := append(t.rsyncArgs(src), remoteSpec(src, relPath), localPath)
	return runCommand(ctx, "rsync", args)
}

// Delete removes relPath on root's host over an ssh one-shot command.
func (t *RsyncTransfer) Delete(ctx context.Context, root model.Root, relPath string) error {
	full := joinRemotePath(root.Path, relPath)
	remoteCmd := fmt.Sprintf("rm -f -- %s", shellQuote(full))

	host := root.Host
	if root.User != "" {
		host = root.User + "@" + host
	}
	args := []string{}
	if t.SSHConfigFile != "" {
		args = append(args, "-F", t.SSHConfigFile)
	}
	if root.Port != "" {
		args = append(args, "-p", root.Port)
	}
	args = append(args, root.SSHOptions...)
	args = append(args, host, remoteCmd)
	return runCommand(ctx, t.sshBin(), args)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func runCommand(ctx context.Context, name string, args []string) error {
	if _, err := execLookPath(name); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

var _ RemoteTransfer = (*RsyncTransfer)(nil)
