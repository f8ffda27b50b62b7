package almanac

import (
	"errors"
	"fmt"
)

// ErrRegistry reports an unusable plugin source. It is fatal for the whole
// run: no plugin executes after a registry failure.
type ErrRegistry struct {
	Source  string
	Message string
}

func (e *ErrRegistry) Error() string {
	return fmt.Sprintf("registry %s: %s", e.Source, e.Message)
}

// ErrPluginTimeout marks a plugin invocation that exceeded its deadline.
// Match with errors.Is on a PluginError's Err.
var ErrPluginTimeout = errors.New("plugin timed out")

// PluginError is a single plugin's failure. It never aborts the batch;
// the runner records it and moves on.
type PluginError struct {
	Plugin string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Plugin, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// ArtifactWriteError is a per-key staging failure. The key's artifact stays
// at its previous version; other keys are unaffected.
type ArtifactWriteError struct {
	Key string
	Err error
}

func (e *ArtifactWriteError) Error() string {
	return fmt.Sprintf("artifact %s: %v", e.Key, e.Err)
}

func (e *ArtifactWriteError) Unwrap() error { return e.Err }

// ErrRemote is an error response from the knowledge-base service.
type ErrRemote struct {
	Op     string
	Status int
	Body   string
}

func (e *ErrRemote) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
}

// Transient reports whether the error is worth retrying: rate limiting
// (429) and server-side failures (5xx) are transient, everything else is
// permanent.
func (e *ErrRemote) Transient() bool {
	return e.Status == 429 || e.Status >= 500
}

// IsTransient reports whether err (or anything it wraps) is a transient
// remote error. Network-level failures without an HTTP status are treated
// as transient too.
func IsTransient(err error) bool {
	var re *ErrRemote
	if errors.As(err, &re) {
		return re.Transient()
	}
	var ne *ErrNetwork
	return errors.As(err, &ne)
}

// ErrNetwork wraps a transport-level failure (connection refused, DNS,
// timeouts below the HTTP layer). Always considered transient.
type ErrNetwork struct {
	Op  string
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ErrNetwork) Unwrap() error { return e.Err }
