// Package resolver implements C8: turning a command-line root string
// into a model.Root, classifying it as local or SSH-reachable and
// parsing the "ssh:[user@]host[:port]:/path[:ssh_opts[:rsync_opts]]"
// URI form.
package resolver

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"dupsync/internal/model"
)

const sshPrefix = "ssh:"

// Resolve classifies raw as local or remote and produces a model.Root
// with id assigned by the caller's ordering.
func Resolve(id int, raw string) (model.Root, error) {
	if !strings.HasPrefix(raw, sshPrefix) {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return model.Root{}, fmt.Errorf("resolver: %s: %w", raw, err)
		}
		return model.Root{ID: id, Kind: model.RootLocal, Path: abs}, nil
	}
	return parseSSH(id, strings.TrimPrefix(raw, sshPrefix))
}

// parseSSH splits "[user@]host[:port]:/path[:ssh_opts[:rsync_opts]]".
// ssh_opts and rsync_opts, when present, are comma-separated flag
// lists so a single root string survives shell quoting.
func parseSSH(id int, rest string) (model.Root, error) {
	parts := strings.Split(rest, ":")
	if len(parts) < 2 {
		return model.Root{}, fmt.Errorf("resolver: malformed ssh root %q: want host:/path", rest)
	}

	// The remote path is the field that starts with "/"; everything
	// before it is "[user@]host[:port]", which may itself contain a
	// colon, so it can't be identified by position alone.
	pathIdx := -1
	for i, p := range parts {
		if strings.HasPrefix(p, "/") {
			pathIdx = i
			break
		}
	}
	if pathIdx < 1 {
		return model.Root{}, fmt.Errorf("resolver: malformed ssh root %q: want host:/path", rest)
	}

	userHost := strings.Join(parts[:pathIdx], ":")
	remotePath := parts[pathIdx]
	var sshOpts, rsyncOpts []string
	if len(parts) > pathIdx+1 && parts[pathIdx+1] != "" {
		sshOpts = splitOpts(parts[pathIdx+1])
	}
	if len(parts) > pathIdx+2 && parts[pathIdx+2] != "" {
		rsyncOpts = splitOpts(parts[pathIdx+2])
	}

	user, host, port, err := splitUserHostPort(userHost)
	if err != nil {
		return model.Root{}, fmt.Errorf("resolver: %s: %w", rest, err)
	}
	if remotePath == "" {
		return model.Root{}, fmt.Errorf("resolver: ssh root %q is missing a remote path", rest)
	}

	return model.Root{
		ID:           id,
		Kind:         model.RootRemote,
		Path:         remotePath,
		Host:         host,
		User:         user,
		Port:         port,
		SSHOptions:   sshOpts,
		RsyncOptions: rsyncOpts,
	}, nil
}

func splitUserHostPort(s string) (user, host, port string, err error) {
	if at := strings.IndexByte(s, '@'); at >= 0 {
		user, s = s[:at], s[at+1:]
	}
	host = s
	if bracket := strings.LastIndexByte(s, ']'); bracket >= 0 {
		// bracketed IPv6 literal: host is everything through ']', an
		// optional ":port" may follow.
		host = s[:bracket+1]
		rest := s[bracket+1:]
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}
		return user, host, port, validatePort(port)
	}
	if colon := strings.LastIndexByte(s, ':'); colon >= 0 {
		host = s[:colon]
		port = s[colon+1:]
	}
	if host == "" {
		return "", "", "", fmt.Errorf("empty host")
	}
	return user, host, port, validatePort(port)
}

func validatePort(port string) error {
	if port == "" {
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

func splitOpts(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, o := range raw {
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsRemote is a convenience predicate the driver uses to route a root
// through the local pipeline or the tunnel client.
func IsRemote(root model.Root) bool {
	return root.Kind == model.RootRemote
}
