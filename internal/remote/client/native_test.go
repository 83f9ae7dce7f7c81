package client

import "testing"

func TestParseSSHArgsExtractsForwardAndCommand(t *testing.T) {
	args := []string{"-p", "2222", "-L", "127.0.0.1:29876:127.0.0.1:5050", "-T", "-o", "ExitOnForwardFailure=yes", "deploy@example.com", "dupsync server --port 5050"}

	spec, err := parseSSHArgs(args)
	if err != nil {
		t.Fatal(err)
	}
	if spec.host != "example.com" || spec.user != "deploy" || spec.port != "2222" {
		t.Errorf("unexpected host fields: %+v", spec)
	}
	if spec.bindAddr != "127.0.0.1" || spec.localPort != "29876" || spec.dstHost != "127.0.0.1" || spec.dstPort != "5050" {
		t.Errorf("unexpected forward fields: %+v", spec)
	}
	if spec.remoteCommand != "dupsync server --port 5050" {
		t.Errorf("unexpected remote command: %q", spec.remoteCommand)
	}
}

func TestParseSSHArgsDefaultsPort(t *testing.T) {
	args := []string{"-L", "127.0.0.1:1:127.0.0.1:2", "host", "cmd"}
	spec, err := parseSSHArgs(args)
	if err != nil {
		t.Fatal(err)
	}
	if spec.port != "22" {
		t.Errorf("expected default port 22, got %q", spec.port)
	}
}

func TestParseSSHArgsMissingHostErrors(t *testing.T) {
	if _, err := parseSSHArgs([]string{"-L", "127.0.0.1:1:127.0.0.1:2"}); err == nil {
		t.Fatal("expected an error when no host is present")
	}
}

func TestParseForwardSpecRejectsMalformedSpec(t *testing.T) {
	var spec sshArgSpec
	if err := parseForwardSpec("not-a-forward-spec", &spec); err == nil {
		t.Fatal("expected an error for a malformed forward spec")
	}
}
