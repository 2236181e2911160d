package shadow

import (
	"errors"
	"fmt"
	"time"
)

// ErrInstanceGone is returned by [Provisioner.Healthy] when the instance has
// stopped and will never become healthy. It ends health polling immediately.
var ErrInstanceGone = errors.New("shadow instance is gone")

// ProvisioningTimeoutError means the shadow instance did not pass its health
// check within the allowed number of attempts.
type ProvisioningTimeoutError struct {
	InstanceID string
	Attempts   int
	Interval   time.Duration
	Err        error // the last health check failure
}

func (e *ProvisioningTimeoutError) Error() string {
	return fmt.Sprintf(
		"shadow instance %s was not healthy after %d attempts %s apart: %v",
		e.InstanceID, e.Attempts, e.Interval, e.Err,
	)
}

func (e *ProvisioningTimeoutError) Unwrap() error {
	return e.Err
}

// DiffToolError means the diff tool failed: it could not be started, it exited
// with a code other than 0 (no differences) or 2 (differences found), or it
// reported differences without printing any.
type DiffToolError struct {
	ExitCode int // -1 if the tool never ran to completion
	Output   string
	Err      error
}

func (e *DiffToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diff tool failed (exit code %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("diff tool failed (exit code %d): %s", e.ExitCode, e.Output)
}

func (e *DiffToolError) Unwrap() error {
	return e.Err
}

// CleanupError means a shadow instance could not be destroyed. It never
// replaces the error of the run itself; it is reported on [Result.CleanupErr]
// so the caller can tell the user how to remove the instance by hand.
type CleanupError struct {
	InstanceID string
	Hint       string
	Err        error
}

func (e *CleanupError) Error() string {
	msg := fmt.Sprintf("failed to destroy shadow instance %s: %v", e.InstanceID, e.Err)
	if e.Hint != "" {
		msg += fmt.Sprintf(" (remove it manually with: %s)", e.Hint)
	}
	return msg
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
