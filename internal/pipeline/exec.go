package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"optbrief/internal/secrets"
)

// execStep runs a shell command step in the workspace. Stdout and stderr
// stream into the run log.
func (r *Runner) execStep(ctx context.Context, ws *workspace, output io.Writer, step *Step) error {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout.Std())
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", step.Run)
	cmd.Dir = ws.Dir
	cmd.Env = r.stepEnv(step)
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("pipeline: step %q timed out after %s", step.Name, step.Timeout.Std())
		}
		return fmt.Errorf("pipeline: step %q: %w", step.Name, err)
	}
	return nil
}

// stepEnv layers the step's subprocess environment: sanitized base
// environment, then pipeline env, then step env, then the step's named
// secrets. Secrets reach only the steps that name them.
func (r *Runner) stepEnv(step *Step) []string {
	env := secrets.BaseEnv(r.secrets)
	for k, v := range r.cfg.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range step.Env {
		env = append(env, k+"="+v)
	}
	for _, name := range step.Secrets {
		value, ok := r.secrets.Get(name)
		if !ok {
			r.logger.Warn("secret not available for step", "step", step.Name, "secret", name)
			continue
		}
		env = append(env, name+"="+value)
	}
	return env
}
