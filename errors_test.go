package almanac

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &ErrRemote{Op: "create", Status: 429}, true},
		{"server error", &ErrRemote{Op: "create", Status: 500}, true},
		{"bad gateway", &ErrRemote{Op: "attach", Status: 502}, true},
		{"unauthorized", &ErrRemote{Op: "create", Status: 401}, false},
		{"not found", &ErrRemote{Op: "delete", Status: 404}, false},
		{"bad request", &ErrRemote{Op: "attach", Status: 400}, false},
		{"network failure", &ErrNetwork{Op: "create", Err: errors.New("connection refused")}, true},
		{"wrapped remote", fmt.Errorf("create: %w", &ErrRemote{Op: "create", Status: 503}), true},
		{"wrapped permanent", fmt.Errorf("attach: %w", &ErrRemote{Op: "attach", Status: 409}), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPluginErrorUnwrapsTimeout(t *testing.T) {
	err := error(&PluginError{Plugin: "news", Err: ErrPluginTimeout})
	if !errors.Is(err, ErrPluginTimeout) {
		t.Error("PluginError should unwrap to ErrPluginTimeout")
	}
	if got := err.Error(); got != "plugin news: plugin timed out" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestArtifactWriteErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&ArtifactWriteError{Key: "weather", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("ArtifactWriteError should unwrap its cause")
	}
}

func TestErrRegistryMessage(t *testing.T) {
	err := &ErrRegistry{Source: "notes", Message: "directory does not exist"}
	if got := err.Error(); got != "registry notes: directory does not exist" {
		t.Errorf("unexpected message: %q", got)
	}
}
