// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/hotswap/lib/clock"
)

// DefaultGracePeriod is how long Stop waits after SIGTERM before
// sending SIGKILL.
const DefaultGracePeriod = 3 * time.Second

// Options configures a supervised build process.
type Options struct {
	// Command is the program and its arguments. Required.
	Command []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Env is added to the current environment.
	Env []string

	// Stdout and Stderr receive the child's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Process is a running build process.
type Process struct {
	command     *exec.Cmd
	pid         int
	gracePeriod time.Duration
	clock       clock.Clock
	logger      *slog.Logger

	done     chan struct{}
	exitCode int
	waitErr  error

	stopOnce sync.Once
	stopErr  error
}

// Start spawns the build process in a new process group. The process
// is stopped when ctx is cancelled or Stop is called.
func Start(ctx context.Context, options Options) (*Process, error) {
	if len(options.Command) == 0 {
		return nil, errors.New("build process: command is required")
	}
	if options.GracePeriod <= 0 {
		options.GracePeriod = DefaultGracePeriod
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	command := exec.Command(options.Command[0], options.Command[1:]...)
	command.Dir = options.Dir
	command.Env = append(os.Environ(), options.Env...)
	command.Stdout = options.Stdout
	command.Stderr = options.Stderr
	command.SysProcAttr = &syscall.SysProcAttr{
		// A group of its own lets Stop reach the go toolchain and
		// compiler processes the watcher spawns, not just the watcher.
		Setpgid: true,
		// If this process dies without running Stop, the kernel still
		// terminates the child.
		Pdeathsig: syscall.SIGTERM,
	}
	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("starting build process %q: %w", options.Command[0], err)
	}

	process := &Process{
		command:     command,
		pid:         command.Process.Pid,
		gracePeriod: options.GracePeriod,
		clock:       options.Clock,
		logger:      options.Logger.With("pid", command.Process.Pid),
		done:        make(chan struct{}),
		exitCode:    -1,
	}
	process.logger.Info("build process started", "command", options.Command)

	go process.wait()
	go func() {
		select {
		case <-ctx.Done():
			process.Stop()
		case <-process.done:
		}
	}()
	return process, nil
}

func (p *Process) wait() {
	err := p.command.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.exitCode = 0
	case errors.As(err, &exitErr):
		p.exitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			// Shell convention: 128 + signal number.
			p.exitCode = 128 + int(status.Signal())
		}
	default:
		p.waitErr = err
	}
	close(p.done)
}

// PID returns the child's process id, which is also its process group
// id.
func (p *Process) PID() int { return p.pid }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has exited, without blocking.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit status once Done is closed: the exit code,
// 128+signal for a signalled process, or -1 while still running.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
		return p.exitCode
	default:
		return -1
	}
}

// Stop terminates the process group: SIGTERM, then SIGKILL after the
// grace period. A failure is logged and returned; callers typically
// have nothing better to do with it. Safe to call more than once.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop()
		if p.stopErr != nil {
			p.logger.Error("stopping build process", "error", p.stopErr)
		}
	})
	return p.stopErr
}

func (p *Process) stop() error {
	if p.Exited() {
		return nil
	}
	if err := signalGroup(p.pid, unix.SIGTERM); err != nil {
		return err
	}
	select {
	case <-p.done:
		p.logger.Info("build process stopped", "exit_code", p.exitCode)
		return nil
	case <-p.clock.After(p.gracePeriod):
	}

	p.logger.Warn("build process ignored SIGTERM, killing", "grace_period", p.gracePeriod)
	if err := signalGroup(p.pid, unix.SIGKILL); err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	case <-p.clock.After(p.gracePeriod):
		return fmt.Errorf("build process %d still running after SIGKILL", p.pid)
	}
}

// signalGroup sends signal to every process in the group. A group that
// is already gone is not an error.
func signalGroup(pgid int, signal unix.Signal) error {
	err := unix.Kill(-pgid, signal)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("sending %s to process group %d: %w", unix.SignalName(signal), pgid, err)
	}
	return nil
}
