package media

import (
	"context"
	"os/exec"
	"strings"

	"clipforge/internal/services"
)

// Runner executes an external tool and returns its combined output. Tests
// swap in a recorder so argument construction is verifiable without ffmpeg
// installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(tail(string(output), 2000))
		if ctx.Err() != nil {
			return output, services.Wrap(services.ErrTimeout, "", name, detail, ctx.Err())
		}
		return output, services.Wrap(services.ErrExternalTool, "", name, detail, err)
	}
	return output, nil
}

// tail keeps the last n bytes of tool output; ffmpeg puts the useful error
// at the end.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
