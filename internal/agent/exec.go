package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/t0dorakis/murmur/internal/logging"
)

// waitDelay gives a cancelled process time to exit after SIGTERM before Go
// closes its pipes and escalates to SIGKILL.
// See: https://github.com/golang/go/issues/50436
const waitDelay = 3 * time.Second

type execResult struct {
	exitCode int
	stdout   string
	stderr   string
	timedOut bool
}

// runProcess spawns argv (wrapped through the login shell) with stdin
// piped in, enforces the timeout, and drains stdout and stderr
// concurrently. onStdout receives stdout chunks as they arrive, in
// addition to the full raw capture in the result; stdout and stderr are
// read in parallel so neither pipe can back up and deadlock the child.
func runProcess(ctx context.Context, argv []string, dir, stdin string, timeout time.Duration, onStart func(pid int), onStdout func(chunk []byte)) (*execResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	wrapped := wrapLoginShell(argv)
	cmd := exec.CommandContext(ctx, wrapped[0], wrapped[1:]...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)

	// SIGTERM on cancel instead of the default SIGKILL, so the agent CLI
	// can flush its stream before dying.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", argv[0], err)
	}

	pid := cmd.Process.Pid
	logging.ForComponent(logging.CompAgent).Debug("spawned agent process",
		"command", argv[0], "pid", pid)
	if onStart != nil {
		onStart(pid)
	}

	var stdoutBuf, stderrBuf strings.Builder

	var g errgroup.Group
	g.Go(func() error {
		buf := make([]byte, 32*1024)
		for {
			n, err := stdoutPipe.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				stdoutBuf.Write(chunk)
				if onStdout != nil {
					onStdout(chunk)
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("stdout read failed: %w", err)
			}
		}
	})
	g.Go(func() error {
		if _, err := io.Copy(&stderrBuf, stderrPipe); err != nil {
			return fmt.Errorf("stderr read failed: %w", err)
		}
		return nil
	})

	streamErr := g.Wait()
	waitErr := cmd.Wait()

	res := &execResult{
		stdout: stdoutBuf.String(),
		stderr: stderrBuf.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.timedOut = true
		res.exitCode = -1
		return res, fmt.Errorf("agent timed out after %s", timeout)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.exitCode = exitErr.ExitCode()
		} else {
			res.exitCode = -1
			return res, fmt.Errorf("agent process failed: %w", waitErr)
		}
	}

	if streamErr != nil {
		return res, streamErr
	}
	return res, nil
}

// probeAvailable checks for a CLI on PATH through the login shell so user
// profile PATH entries are honored. Never panics; any failure is false.
func probeAvailable(cli string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	argv := wrapLoginShell([]string{"which", cli})
	err := exec.CommandContext(ctx, argv[0], argv[1:]...).Run()
	return err == nil
}

// probeVersion asks a CLI for its version. Never panics; unknown is "".
func probeVersion(cli string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	argv := wrapLoginShell([]string{cli, "--version"})
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
	if err != nil {
		return ""
	}
	version := strings.TrimSpace(string(out))
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = version[:i]
	}
	return version
}
