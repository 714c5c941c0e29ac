// Package updater decides whether the server files need downloading and runs
// the external downloader when they do.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// Mode controls when the downloader runs.
type Mode string

const (
	Always  Mode = "always"
	Missing Mode = "missing"
	Never   Mode = "never"
)

// ErrServerMissing means the server jar is absent after the update step.
var ErrServerMissing = errors.New("server files missing")

// Runner executes one command to completion.
type Runner interface {
	Run(ctx context.Context, argv, env []string, dir string) error
}

// ExecRunner runs commands with os/exec, streaming their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, argv, env []string, dir string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

type Options struct {
	Mode Mode
	// Command is the downloader command line, split on whitespace.
	Command              string
	ServerDir            string
	ServerJar            string
	CacheDir             string
	DownloaderCredential string
	Runner               Runner
	Logger               logging.Logger
}

type Updater struct {
	opts   Options
	logger logging.Logger
}

func New(opts Options) *Updater {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
	}
	return &Updater{opts: opts, logger: logging.Or(opts.Logger).With("component", "updater")}
}

// Update runs the downloader according to the mode. Any failure is fatal
// to startup: the server cannot run without its files.
func (u *Updater) Update(ctx context.Context) error {
	installed := fileExists(u.opts.ServerJar)

	switch u.opts.Mode {
	case Never:
		u.logger.Info(ctx, "updates disabled")
	case Missing:
		if installed {
			u.logger.Info(ctx, "server files present, skipping download", "jar", u.opts.ServerJar)
			return nil
		}
		if err := u.download(ctx); err != nil {
			return err
		}
	case Always:
		if err := u.download(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown update mode %q", u.opts.Mode)
	}

	if !fileExists(u.opts.ServerJar) {
		return fmt.Errorf("%w: %s not found; mount the server files or set UPDATE_MODE=missing", ErrServerMissing, u.opts.ServerJar)
	}
	return nil
}

func (u *Updater) download(ctx context.Context) error {
	argv := strings.Fields(u.opts.Command)
	if len(argv) == 0 {
		return errors.New("no downloader command configured; set DOWNLOADER_CMD")
	}
	if err := os.MkdirAll(u.opts.ServerDir, 0o755); err != nil {
		return fmt.Errorf("create server dir: %w", err)
	}

	env := []string{
		"DOWNLOAD_DIR=" + u.opts.ServerDir,
		"DOWNLOADER_CREDENTIALS=" + u.opts.DownloaderCredential,
	}
	if u.opts.CacheDir != "" {
		env = append(env, "DOWNLOAD_CACHE="+u.opts.CacheDir)
	}

	u.logger.Info(ctx, "downloading server files", "command", argv[0], "dir", u.opts.ServerDir)
	if err := u.opts.Runner.Run(ctx, argv, env, u.opts.ServerDir); err != nil {
		return fmt.Errorf("downloader failed: %w", err)
	}
	u.logger.Info(ctx, "server files up to date")
	return nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
