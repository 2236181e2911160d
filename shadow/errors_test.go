package shadow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/pgdrift/shadow"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")

	timeout := &shadow.ProvisioningTimeoutError{InstanceID: "abc", Attempts: 20, Interval: time.Second, Err: cause}
	check.Equal(t, "shadow instance abc was not healthy after 20 attempts 1s apart: connection refused", timeout.Error())
	check.True(t, errors.Is(timeout, cause))

	cleanup := &shadow.CleanupError{InstanceID: "abc", Hint: "docker rm -f abc", Err: cause}
	check.Equal(t, "failed to destroy shadow instance abc: connection refused (remove it manually with: docker rm -f abc)", cleanup.Error())
	check.True(t, errors.Is(cleanup, cause))

	diff := &shadow.DiffToolError{ExitCode: 3, Output: "usage: migra"}
	check.Equal(t, "diff tool failed (exit code 3): usage: migra", diff.Error())
}
