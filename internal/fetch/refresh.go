package fetch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Refresher brings a local snapshot tree up to date before it is read.
type Refresher interface {
	Refresh(ctx context.Context, root string) error
}

type RefreshFunc func(ctx context.Context, root string) error

func (f RefreshFunc) Refresh(ctx context.Context, root string) error {
	return f(ctx, root)
}

var defaultGitArgs = []string{"submodule", "update", "--remote"}

// GitRefresher runs git in the snapshot root. With no Args it updates the
// root's submodules to their remote heads.
type GitRefresher struct {
	Args    []string
	Timeout time.Duration
}

func (g GitRefresher) Refresh(ctx context.Context, root string) error {
	args := g.Args
	if len(args) == 0 {
		args = defaultGitArgs
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
