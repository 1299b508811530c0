package instance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// LaunchSpec is everything a Launcher needs to start one server.
type LaunchSpec struct {
	Server  string
	Version string
	Dir     string
	Jar     string
}

// Launcher starts a server process and returns without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (pid int, err error)
}

// JavaLauncher runs the server jar with the java binary.
type JavaLauncher struct {
	Binary    string
	MaxMemory string
	ExtraArgs []string
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
}

// NewJavaLauncher creates a launcher attached to the current terminal.
func NewJavaLauncher(binary, maxMemory string, extraArgs []string, logger *slog.Logger) *JavaLauncher {
	if binary == "" {
		binary = "java"
	}
	if maxMemory == "" {
		maxMemory = "2G"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JavaLauncher{
		Binary:    binary,
		MaxMemory: maxMemory,
		ExtraArgs: extraArgs,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Logger:    logger,
	}
}

// Command builds the java invocation for spec without starting it.
func (l *JavaLauncher) Command(spec LaunchSpec) (*exec.Cmd, error) {
	heap, err := HeapFlag(l.MaxMemory)
	if err != nil {
		return nil, fmt.Errorf("java max memory: %w", err)
	}

	args := []string{heap}
	args = append(args, l.ExtraArgs...)
	args = append(args, "-jar", spec.Jar, "nogui")

	// Not CommandContext: the server outlives this process.
	cmd := exec.Command(l.Binary, args...)
	cmd.Dir = spec.Dir
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	return cmd, nil
}

// Launch starts the server detached and releases the process handle.
func (l *JavaLauncher) Launch(ctx context.Context, spec LaunchSpec) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cmd, err := l.Command(spec)
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", l.Binary, err)
	}

	pid := cmd.Process.Pid
	l.Logger.Info("server started", "server", spec.Server, "version", spec.Version, "pid", pid, "dir", spec.Dir)
	if err := cmd.Process.Release(); err != nil {
		l.Logger.Warn("failed to release server process", "pid", pid, "error", err)
	}
	return pid, nil
}
