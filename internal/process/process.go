// Package process spawns detached programs and finds or signals running ones by name.
package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/rbright/modus/internal/logging"
)

// Process is one entry from the process table.
type Process struct {
	PID  int
	Name string
}

// Supervisor is the OS-level process collaborator used by launch and kill actions.
type Supervisor struct {
	procRoot string
	self     int
	logger   *slog.Logger
}

// NewSupervisor builds a supervisor over /proc.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{procRoot: "/proc", self: os.Getpid(), logger: logging.OrDiscard(logger)}
}

// Spawn starts path with args in its own process group and returns its pid.
//
// The child outlives the call; a goroutine reaps it on exit.
func (s *Supervisor) Spawn(path string, args []string, dir string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("spawn: empty program path")
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn %s: %w", path, err)
	}

	pid := cmd.Process.Pid
	s.logger.Info("process spawned", "program", path, "args", args, "pid", pid)
	go func() {
		err := cmd.Wait()
		s.logger.Debug("spawned process exited", "program", path, "pid", pid, "error", err)
	}()
	return pid, nil
}

// FindByName lists processes whose name contains name, case-insensitively, excluding the caller.
// Results are ordered by pid.
func (s *Supervisor) FindByName(name string) ([]Process, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, errors.New("find process: empty name")
	}

	entries, err := os.ReadDir(s.procRoot)
	if err != nil {
		return nil, fmt.Errorf("read process table: %w", err)
	}

	var matches []Process
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == s.self {
			continue
		}
		for _, candidate := range s.names(pid) {
			if strings.Contains(strings.ToLower(candidate), needle) {
				matches = append(matches, Process{PID: pid, Name: candidate})
				break
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].PID < matches[j].PID })
	return matches, nil
}

// IsRunning reports whether any process other than the caller matches name.
func (s *Supervisor) IsRunning(name string) bool {
	matches, err := s.FindByName(name)
	return err == nil && len(matches) > 0
}

// Signal sends SIGTERM, or SIGKILL when force is set.
func (s *Supervisor) Signal(pid int, force bool) error {
	if pid <= 0 {
		return fmt.Errorf("signal: invalid pid %d", pid)
	}
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal %s to pid %d: %w", unix.SignalName(sig), pid, err)
	}
	s.logger.Info("process signaled", "pid", pid, "signal", unix.SignalName(sig))
	return nil
}

// names returns the kernel comm name plus the base name of argv[0], since comm truncates at 15 bytes.
func (s *Supervisor) names(pid int) []string {
	dir := filepath.Join(s.procRoot, strconv.Itoa(pid))

	var names []string
	if comm, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
		if name := strings.TrimSpace(string(comm)); name != "" {
			names = append(names, name)
		}
	}
	if cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		argv0, _, _ := strings.Cut(string(cmdline), "\x00")
		if base := filepath.Base(strings.TrimSpace(argv0)); base != "" && base != "." {
			names = append(names, base)
		}
	}
	return names
}
