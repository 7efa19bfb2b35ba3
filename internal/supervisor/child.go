// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package supervisor implements the ChildHandle process-supervision
// primitives shared by every helper-process component: the iOS tunnel
// manager, the WDA server, and the Android agent fallback.
package supervisor

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/clock"
)

// gracePeriod is how long spawn waits before declaring a child alive.
const gracePeriod = 300 * time.Millisecond

// terminateGrace is how long terminate waits for a polite exit before
// force-killing.
const terminateGrace = 2 * time.Second

// logTailLines is how many trailing log lines are embedded in a spawn
// failure message.
const logTailLines = 40

// ChildHandle supervises one spawned OS process and its log file.
type ChildHandle struct {
	logger *zap.Logger
	name   string
	clock  clock.Interface

	mu      sync.Mutex
	cmd     *exec.Cmd
	logFile *os.File
	logPath string
	port    int // 0 if this child has no primary TCP port to probe
	done    chan struct{}
	waitErr error
}

// New builds a handle. port is the primary TCP port IsAlive should probe
// in addition to process liveness; pass 0 if the child has none.
func New(logger *zap.Logger, name string, port int) *ChildHandle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChildHandle{logger: logger.With(zap.String("child", name)), name: name, port: port, clock: clock.System()}
}

// NewWithClock is New with an injectable clock, for deterministic tests of
// the spawn grace period and terminate timeout.
func NewWithClock(logger *zap.Logger, name string, port int, c clock.Interface) *ChildHandle {
	h := New(logger, name, port)
	h.clock = c
	return h
}

// Spawn starts cmd/args, routing stdout and stderr into logPath (truncated
// then appended to), and waits gracePeriod to catch immediate failures. If
// the child has already died within that window, Spawn reads the log tail
// and returns an error with it embedded.
func (h *ChildHandle) Spawn(cmd string, args []string, logPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logPath, err)
	}

	c := exec.Command(cmd, args...)
	c.Stdout = logFile
	c.Stderr = logFile

	if err := c.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("start %s: %w", h.name, err)
	}
	spawnTotal.WithLabelValues(h.name).Inc()

	h.cmd = c
	h.logFile = logFile
	h.logPath = logPath
	done := make(chan struct{})
	h.done = done
	var waitErr error

	go func() {
		waitErr = c.Wait()
		close(done)
		h.mu.Lock()
		h.waitErr = waitErr
		h.mu.Unlock()
	}()

	h.clock.Sleep(gracePeriod)

	select {
	case <-h.done:
		spawnFailureTotal.WithLabelValues(h.name).Inc()
		tail := h.logTailLocked()
		h.logFile.Close()
		h.logFile = nil
		return fmt.Errorf("%s exited immediately: %w\n--- log tail ---\n%s", h.name, waitErr, tail)
	default:
	}

	h.logger.Info("spawned child", zap.String("cmd", cmd), zap.Strings("args", args), zap.Int("pid", c.Process.Pid))
	return nil
}

// IsAlive reports whether the process is running and, if a port was
// configured, whether that port currently accepts connections.
func (h *ChildHandle) IsAlive() bool {
	h.mu.Lock()
	cmd := h.cmd
	done := h.done
	port := h.port
	h.mu.Unlock()

	if cmd == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
	}

	if port == 0 {
		return true
	}
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 300*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Terminate sends a polite signal, waits up to terminateGrace, then force
// kills. It is idempotent: terminating an already-dead or never-spawned
// handle is a no-op.
func (h *ChildHandle) Terminate() error {
	h.mu.Lock()
	cmd := h.cmd
	done := h.done
	h.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	terminateTotal.WithLabelValues(h.name).Inc()

	select {
	case <-done:
		return h.closeLog()
	default:
	}

	_ = cmd.Process.Signal(os.Interrupt)

	timer := h.clock.NewTimer(terminateGrace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C():
		if err := cmd.Process.Kill(); err != nil && !isProcessDoneErr(err) {
			h.logger.Warn("force-kill failed", zap.Error(err))
		}
		<-done
	}
	return h.closeLog()
}

func (h *ChildHandle) closeLog() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.logFile == nil {
		return nil
	}
	err := h.logFile.Close()
	h.logFile = nil
	return err
}

func isProcessDoneErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "process already finished")
}

// LogTail returns the last n lines of the child's log file.
func (h *ChildHandle) LogTail(n int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logTailLockedN(n)
}

func (h *ChildHandle) logTailLocked() string {
	return h.logTailLockedN(logTailLines)
}

func (h *ChildHandle) logTailLockedN(n int) string {
	if h.logPath == "" {
		return ""
	}
	f, err := os.Open(h.logPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return strings.Join(lines, "\n")
}

// Signal sends sig to the child process, used by callers that need to
// clean up a stale port owner before spawning.
func (h *ChildHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("%s: no process to signal", h.name)
	}
	return cmd.Process.Signal(sig)
}
