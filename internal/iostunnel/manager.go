// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package iostunnel implements the process-wide singleton iOS tunnel
// manager: one `ios tunnel start --udid=... --userspace` child per device,
// reference-counted across consumers and kept warm between sessions.
package iostunnel

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/supervisor"
)

// Manager owns at most one tunnel child per UDID.
type Manager struct {
	logger  *zap.Logger
	logDir  string
	lookPID func(udid string) (bool, error)
	tunnel  func(udid string) (name string, args []string)

	mu       sync.Mutex
	handles  map[string]*supervisor.ChildHandle
	refCount map[string]int
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithCommand overrides the command used to spawn a tunnel, replacing the
// default `ios tunnel start --udid=... --userspace`. Intended for tests.
func WithCommand(fn func(udid string) (name string, args []string)) Option {
	return func(m *Manager) { m.tunnel = fn }
}

// WithProcessLookup overrides the orphan-process lookup used when no
// managed handle exists for a UDID. Intended for tests.
func WithProcessLookup(fn func(udid string) (bool, error)) Option {
	return func(m *Manager) { m.lookPID = fn }
}

// New builds a Manager. logDir is where per-device tunnel logs are
// written; it defaults to /tmp when empty.
func New(logger *zap.Logger, logDir string, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if logDir == "" {
		logDir = "/tmp"
	}
	m := &Manager{
		logger:  logger,
		logDir:  logDir,
		lookPID: pgrepTunnel,
		tunnel: func(udid string) (string, []string) {
			return "ios", []string{"tunnel", "start", "--udid=" + udid, "--userspace"}
		},
		handles:  map[string]*supervisor.ChildHandle{},
		refCount: map[string]int{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsTunnelRunning checks both the managed handle and, defensively, a
// system-wide process search keyed by udid.
func (m *Manager) IsTunnelRunning(udid string) bool {
	m.mu.Lock()
	h, ok := m.handles[udid]
	m.mu.Unlock()

	if ok {
		if h.IsAlive() {
			return true
		}
		m.forgetLocked(udid)
	}

	running, err := m.lookPID(udid)
	if err != nil {
		m.logger.Debug("tunnel process lookup failed", zap.String("udid", udid), zap.Error(err))
		return false
	}
	return running
}

func (m *Manager) forgetLocked(udid string) {
	m.mu.Lock()
	delete(m.handles, udid)
	delete(m.refCount, udid)
	m.mu.Unlock()
}

// StartTunnel ensures a tunnel is running for udid. If one is already
// alive and force is false, the reference count is incremented and the
// existing tunnel is reused. Otherwise any prior instance is terminated
// and a new one spawned.
func (m *Manager) StartTunnel(udid string, force bool) error {
	if !force && m.IsTunnelRunning(udid) {
		m.mu.Lock()
		m.refCount[udid]++
		count := m.refCount[udid]
		m.mu.Unlock()
		m.logger.Info("reusing existing tunnel", zap.String("udid", udid), zap.Int("ref_count", count))
		return nil
	}

	m.mu.Lock()
	if h, ok := m.handles[udid]; ok {
		m.mu.Unlock()
		_ = h.Terminate()
		m.forgetLocked(udid)
	} else {
		m.mu.Unlock()
	}

	m.logger.Info("starting tunnel", zap.String("udid", udid))

	h := supervisor.New(m.logger, fmt.Sprintf("ios-tunnel-%s", shortUDID(udid)), 0)
	logPath := filepath.Join(m.logDir, fmt.Sprintf("ios_tunnel_%s.log", shortUDID(udid)))
	name, args := m.tunnel(udid)

	if err := h.Spawn(name, args, logPath); err != nil {
		return fmt.Errorf("start tunnel for %s: %w", shortUDID(udid), err)
	}

	m.mu.Lock()
	m.handles[udid] = h
	m.refCount[udid] = 1
	m.mu.Unlock()

	m.logger.Info("tunnel started", zap.String("udid", udid), zap.Int("ref_count", 1), zap.String("log_path", logPath))
	return nil
}

// ReleaseDevice decrements udid's reference count. A count reaching zero
// does not terminate the tunnel — it is kept warm for fast reconnection;
// termination only happens via Cleanup or a forced restart. The count never
// drops below zero: an extra release beyond the number of starts is a no-op.
func (m *Manager) ReleaseDevice(udid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refCount[udid]; !ok {
		return
	}
	if m.refCount[udid] > 0 {
		m.refCount[udid]--
	}
	m.logger.Debug("released tunnel reference", zap.String("udid", udid), zap.Int("ref_count", m.refCount[udid]))
}

// Cleanup terminates every managed tunnel, then best-effort reaps orphan
// `ios tunnel start` processes left over from prior runs.
func (m *Manager) Cleanup() {
	m.logger.Info("cleaning up iOS tunnel manager")

	m.mu.Lock()
	udids := make([]string, 0, len(m.handles))
	for udid := range m.handles {
		udids = append(udids, udid)
	}
	m.mu.Unlock()

	for _, udid := range udids {
		m.mu.Lock()
		h := m.handles[udid]
		m.mu.Unlock()
		if h != nil {
			_ = h.Terminate()
		}
		m.forgetLocked(udid)
	}

	ctx := exec.Command("pkill", "-f", "ios tunnel start")
	if err := ctx.Run(); err != nil {
		m.logger.Debug("no stale tunnel processes to clean up", zap.Error(err))
	} else {
		m.logger.Info("cleaned up stale tunnel processes")
	}
}

func shortUDID(udid string) string {
	if len(udid) > 8 {
		return udid[:8]
	}
	return udid
}

func pgrepTunnel(udid string) (bool, error) {
	cmd := exec.Command("pgrep", "-f", fmt.Sprintf("ios tunnel start.*%s", udid))
	cmd.WaitDelay = 2 * time.Second
	out, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil // pgrep exits 1 when nothing matches
		}
		return false, err
	}
	return len(out) > 0, nil
}
