// Package launcher starts the game server JVM, forwards termination signals
// to it, and reports its exit code.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

type Options struct {
	JavaBin    string
	MinMemory  string
	MaxMemory  string
	JVMArgs    string
	ServerJar  string
	ServerArgs string
	Dir        string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger logging.Logger
}

type Launcher struct {
	opts   Options
	logger logging.Logger

	// notify is a test seam for signal.Notify.
	notify func(c chan<- os.Signal, sig ...os.Signal)
}

func New(opts Options) *Launcher {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Launcher{opts: opts, logger: logging.Or(opts.Logger).With("component", "launcher"), notify: signal.Notify}
}

// Argv is the full server command line.
func (l *Launcher) Argv() []string {
	argv := []string{l.opts.JavaBin}
	if l.opts.MinMemory != "" {
		argv = append(argv, "-Xms"+l.opts.MinMemory)
	}
	if l.opts.MaxMemory != "" {
		argv = append(argv, "-Xmx"+l.opts.MaxMemory)
	}
	argv = append(argv, strings.Fields(l.opts.JVMArgs)...)
	argv = append(argv, "-jar", l.opts.ServerJar)
	return append(argv, strings.Fields(l.opts.ServerArgs)...)
}

// Run starts the server with extraEnv added to the inherited environment and
// waits for it. SIGINT and SIGTERM received meanwhile are passed on to the
// server rather than ending this process. The returned code is the server's
// exit code; err is set only when the server could not be started.
func (l *Launcher) Run(ctx context.Context, extraEnv []string) (int, error) {
	return l.run(ctx, l.Argv(), extraEnv)
}

func (l *Launcher) run(ctx context.Context, argv, extraEnv []string) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Dir = l.opts.Dir
	cmd.Stdin = l.opts.Stdin
	cmd.Stdout = l.opts.Stdout
	cmd.Stderr = l.opts.Stderr

	sigs := make(chan os.Signal, 2)
	l.notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("start server: %w", err)
	}
	l.logger.Info(ctx, "server started", "pid", cmd.Process.Pid, "jar", l.opts.ServerJar)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigs:
			l.logger.Info(ctx, "forwarding signal to server", "signal", sig.String())
			if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
				l.logger.Warn(ctx, "could not signal server", "error", err)
			}
		case err := <-done:
			code := exitCode(err)
			l.logger.Info(ctx, "server exited", "code", code)
			return code, nil
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if status, ok := ee.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return ee.ExitCode()
	}
	return 1
}
