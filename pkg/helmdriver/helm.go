// Package helmdriver invokes the helm CLI as a subprocess to install,
// upgrade, and uninstall storefront releases (C5).
package helmdriver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Driver shells out to a helm binary, isolating each invocation in its own
// process group so a timed-out command can be killed along with any
// children it spawned.
type Driver struct {
	binary string
	logger *slog.Logger
}

// New creates a Driver invoking the given helm binary path (or "helm" to
// resolve from PATH).
func New(binary string, logger *slog.Logger) *Driver {
	if binary == "" {
		binary = "helm"
	}
	return &Driver{binary: binary, logger: logger}
}

// Release is a single entry from `helm list -o json`.
type Release struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Status    string `json:"status"`
}

// Install runs `helm upgrade --install` for the given release, chart, and
// values file, waiting for resources to become ready before returning.
func (d *Driver) Install(ctx context.Context, releaseName, chartPath, namespace, valuesPath string) error {
	args := []string{
		"upgrade", "--install", releaseName, chartPath,
		"-n", namespace,
		"-f", valuesPath,
		"--wait",
		"--timeout", "20m",
	}
	_, err := d.run(ctx, args, 22*time.Minute)
	return err
}

// Uninstall runs `helm uninstall` for the given release.
func (d *Driver) Uninstall(ctx context.Context, releaseName, namespace string) error {
	args := []string{"uninstall", releaseName, "-n", namespace}
	_, err := d.run(ctx, args, 5*time.Minute)
	return err
}

// ListReleases runs `helm list -o json` in the given namespace.
func (d *Driver) ListReleases(ctx context.Context, namespace string) ([]Release, error) {
	args := []string{"list", "-n", namespace, "-o", "json"}
	out, err := d.run(ctx, args, time.Minute)
	if err != nil {
		return nil, err
	}

	var releases []Release
	if err := json.Unmarshal(out, &releases); err != nil {
		return nil, nil
	}
	return releases, nil
}

// run executes a helm command in its own process group, discarding stdout
// and draining stderr on a separate goroutine so a long-running --wait
// invocation cannot deadlock on a full pipe buffer. If the context is
// cancelled or the timeout elapses first, the whole process group is
// signalled SIGTERM and, failing a prompt exit, SIGKILL.
func (d *Driver) run(ctx context.Context, args []string, timeout time.Duration) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening helm stderr pipe: %w", err)
	}

	d.logger.Info("helm command starting", "args", strings.Join(args, " "))
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting helm: %w", err)
	}

	var stderrLines []string
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stderrLines = append(stderrLines, line)
			if len(stderrLines) <= 5 {
				d.logger.Info("helm stderr", "line", truncate(line, 200))
			}
		}
	}()

	waitErr := cmd.Wait()
	<-stderrDone
	elapsed := time.Since(start)

	if runCtx.Err() != nil {
		killProcessGroup(cmd)
		return nil, fmt.Errorf("helm command timed out after %s", elapsed.Round(time.Second))
	}

	stderrOutput := strings.Join(stderrLines, "\n")
	if waitErr != nil {
		d.logger.Error("helm command failed", "elapsed", elapsed, "stderr", truncate(stderrOutput, 500))
		if stderrOutput == "" {
			return nil, fmt.Errorf("helm command failed: %w", waitErr)
		}
		return nil, fmt.Errorf("helm command failed: %s", stderrOutput)
	}

	d.logger.Info("helm command succeeded", "elapsed", elapsed)
	return []byte(stderrOutput), nil
}

// killProcessGroup sends SIGTERM to the process group, escalating to
// SIGKILL if it hasn't exited shortly after.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	time.Sleep(5 * time.Second)
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
