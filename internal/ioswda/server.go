// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package ioswda implements the go-ios-backed WDA server manager: tunnel +
// runner + two port forwards per device, a health monitor with bounded
// restart, and a process-global active-server registry used for shutdown.
package ioswda

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/deviceconfig"
	"github.com/uiautodev/uiautodev/internal/iostunnel"
	"github.com/uiautodev/uiautodev/internal/supervisor"
)

// DefaultMJPEGPort is the WDA MJPEG port go-ios forwards by convention.
// spec.md's Open Question (ii) is resolved in favor of this value; 3333
// was a stale artifact of an earlier iteration of the original tool and
// is not carried forward.
const DefaultMJPEGPort = 9100

const (
	monitorInterval  = 5 * time.Second
	restartCooldown  = 10 * time.Second
	quickReadyWindow = 2 * time.Second
	wdaStartTimeout  = 30 * time.Second
	graceDelay       = 300 * time.Millisecond
)

// State is a Server's position in its start/monitor/stop state machine.
type State string

const (
	StateNew        State = "new"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateRestarting State = "restarting"
	StateFailed     State = "failed"
)

// Server owns one device's tunnel reference, runner, and two port
// forwards, plus the health monitor that watches all three.
type Server struct {
	logger    *zap.Logger
	udid      string
	bundleID  string
	port      int
	mjpegPort int

	tunnel      *iostunnel.Manager
	configStore *deviceconfig.Store
	httpClient  *http.Client

	wdaCommand     func(udid, bundleID string) (string, []string)
	forwardCommand func(udid string, port int) (string, []string)

	startMu sync.Mutex // per-UDID start lock

	mu           sync.Mutex
	state        State
	wda          *supervisor.ChildHandle
	forward      *supervisor.ChildHandle
	mjpegForward *supervisor.ChildHandle

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}

	restartMu   sync.Mutex
	lastRestart time.Time
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithWDACommand overrides the command used to launch the runner.
// Intended for tests.
func WithWDACommand(fn func(udid, bundleID string) (string, []string)) Option {
	return func(s *Server) { s.wdaCommand = fn }
}

// WithForwardCommand overrides the command used to forward a port.
// Intended for tests.
func WithForwardCommand(fn func(udid string, port int) (string, []string)) Option {
	return func(s *Server) { s.forwardCommand = fn }
}

// New builds a Server for udid. bundleID and port, when zero-valued,
// are resolved from configStore (falling back to its package defaults).
func New(logger *zap.Logger, udid string, tunnel *iostunnel.Manager, configStore *deviceconfig.Store, bundleID string, port int, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	entry := configStore.Get(udid)
	if bundleID == "" {
		bundleID = entry.WDABundleID
	} else {
		_ = configStore.SetWDABundleID(udid, bundleID)
	}
	if port == 0 {
		port = entry.WDAPort
	} else {
		_ = configStore.SetWDAPort(udid, port)
	}

	s := &Server{
		logger:      logger.With(zap.String("udid", shortUDID(udid))),
		udid:        udid,
		bundleID:    bundleID,
		port:        port,
		mjpegPort:   DefaultMJPEGPort,
		tunnel:      tunnel,
		configStore: configStore,
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		state:       StateNew,
		wdaCommand: func(udid, bundleID string) (string, []string) {
			return "ios", []string{"runwda", "--bundleid=" + bundleID, "--testrunnerbundleid=" + bundleID, "--xctestconfig=WebDriverAgentRunner.xctest", "--udid=" + udid}
		},
		forwardCommand: func(udid string, port int) (string, []string) {
			p := strconv.Itoa(port)
			return "ios", []string{"forward", p, p, "--udid=" + udid}
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	register(s)
	return s
}

// WDABaseURL returns the local HTTP base URL of the forwarded WDA
// control port, for use by the iOS driver.
func (s *Server) WDABaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

// MJPEGPort returns the local forwarded MJPEG port.
func (s *Server) MJPEGPort() int {
	return s.mjpegPort
}

// State returns the server's current state machine position.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start runs the per-device start sequence under the server's start lock.
func (s *Server) Start() error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	// Step 1: adopt an already-ready runner without spawning.
	if s.isWDARunning() {
		s.logger.Info("WDA already running, adopting")
		s.setState(StateRunning)
		s.startMonitor()
		return nil
	}

	s.setState(StateStarting)
	start := time.Now()

	// Step 2: ensure tunnel.
	tunnelStart := time.Now()
	if err := s.tunnel.StartTunnel(s.udid, false); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("start tunnel for %s: %w", shortUDID(s.udid), err)
	}
	tunnelCost := time.Since(tunnelStart)

	// Step 3: stale port owner cleanup.
	if s.isPortOpen(s.port, 500*time.Millisecond) && !s.isWDARunning() {
		s.logger.Warn("port occupied but WDA not responding, cleaning up stale owner")
		s.cleanupStaleProcesses()
		s.waitForPortClose(2 * time.Second)
	}

	// Step 4: start both port forwards.
	forwardStart := time.Now()
	if err := s.startForwards(); err != nil {
		s.setState(StateFailed)
		return err
	}
	forwardCost := time.Since(forwardStart)

	// Step 5: quick ready check.
	if s.waitForWDAReady(quickReadyWindow) {
		s.logger.Info("WDA already running after forwards",
			zap.Duration("tunnel_cost", tunnelCost), zap.Duration("forward_cost", forwardCost), zap.Duration("total", time.Since(start)))
		s.setState(StateRunning)
		s.startMonitor()
		return nil
	}

	// Step 6: start the runner.
	wdaStart := time.Now()
	if err := s.startRunner(); err != nil {
		s.rollback()
		s.setState(StateFailed)
		return err
	}
	if !s.waitForWDAReady(wdaStartTimeout) {
		tail := s.runnerLogTail()
		s.rollback()
		s.setState(StateFailed)
		return fmt.Errorf("WDA failed to become ready within %s on port %d (check bundle id %q — \"did not find test app\" usually means it is wrong)\n--- log tail ---\n%s",
			wdaStartTimeout, s.port, s.bundleID, tail)
	}
	wdaCost := time.Since(wdaStart)

	s.logger.Info("WDA started",
		zap.Duration("tunnel_cost", tunnelCost), zap.Duration("forward_cost", forwardCost), zap.Duration("ready_cost", wdaCost), zap.Duration("total", time.Since(start)))
	s.setState(StateRunning)
	s.startMonitor()
	return nil
}

func (s *Server) runnerLogTail() string {
	s.mu.Lock()
	h := s.wda
	s.mu.Unlock()
	if h == nil {
		return ""
	}
	return h.LogTail(10)
}

func (s *Server) startForwards() error {
	s.mu.Lock()
	forward := s.forward
	mjpegForward := s.mjpegForward
	s.mu.Unlock()

	if forward == nil || !forward.IsAlive() {
		h := supervisor.New(s.logger, fmt.Sprintf("wda-forward-%d", s.port), 0)
		name, args := s.forwardCommand(s.udid, s.port)
		if err := h.Spawn(name, args, fmt.Sprintf("/tmp/wda_forward_%s_%d.log", shortUDID(s.udid), s.port)); err != nil {
			return fmt.Errorf("start WDA port forward: %w", err)
		}
		s.mu.Lock()
		s.forward = h
		s.mu.Unlock()
	}

	if mjpegForward == nil || !mjpegForward.IsAlive() {
		h := supervisor.New(s.logger, fmt.Sprintf("wda-mjpeg-forward-%d", s.mjpegPort), 0)
		name, args := s.forwardCommand(s.udid, s.mjpegPort)
		logPath := fmt.Sprintf("/tmp/wda_mjpeg_forward_%s_%d.log", shortUDID(s.udid), s.mjpegPort)
		if err := h.Spawn(name, args, logPath); err != nil {
			// MJPEG forward failure is a warning, not fatal (ground: goios_wda_server.py).
			s.logger.Warn("MJPEG port forward failed, continuing without it", zap.Error(err))
		} else {
			s.mu.Lock()
			s.mjpegForward = h
			s.mu.Unlock()
		}
	}
	return nil
}

func (s *Server) startRunner() error {
	s.mu.Lock()
	wda := s.wda
	s.mu.Unlock()
	if wda != nil && wda.IsAlive() {
		return nil
	}

	h := supervisor.New(s.logger, fmt.Sprintf("wda-runner-%s", shortUDID(s.udid)), 0)
	name, args := s.wdaCommand(s.udid, s.bundleID)
	logPath := fmt.Sprintf("/tmp/wda_%s.log", shortUDID(s.udid))
	if err := h.Spawn(name, args, logPath); err != nil {
		return fmt.Errorf("start WDA runner: %w", err)
	}
	s.mu.Lock()
	s.wda = h
	s.mu.Unlock()
	return nil
}

func (s *Server) rollback() {
	s.logger.Warn("rolling back WDA start sequence")
	s.terminateChildren()
}

func (s *Server) terminateChildren() {
	s.mu.Lock()
	wda, forward, mjpegForward := s.wda, s.forward, s.mjpegForward
	s.wda, s.forward, s.mjpegForward = nil, nil, nil
	s.mu.Unlock()

	for _, h := range []*supervisor.ChildHandle{wda, forward, mjpegForward} {
		if h != nil {
			_ = h.Terminate()
		}
	}
}

// startMonitor launches the per-device health monitor goroutine if one
// is not already running.
func (s *Server) startMonitor() {
	s.mu.Lock()
	if s.monitorCancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.monitorCancel = cancel
	s.monitorDone = make(chan struct{})
	s.mu.Unlock()

	go s.monitorLoop(ctx)
}

func (s *Server) stopMonitor() {
	s.mu.Lock()
	cancel := s.monitorCancel
	done := s.monitorDone
	s.monitorCancel = nil
	s.monitorDone = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func (s *Server) monitorLoop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		if s.monitorDone != nil {
			close(s.monitorDone)
		}
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runHealthCheck()
		}
	}
}

func (s *Server) runHealthCheck() {
	if !s.tunnel.IsTunnelRunning(s.udid) {
		s.logger.Error("tunnel died, attempting restart")
		s.attemptRestart()
		return
	}

	s.mu.Lock()
	wda, forward := s.wda, s.forward
	s.mu.Unlock()

	if wda != nil && !wda.IsAlive() {
		s.logger.Error("WDA runner died, attempting restart")
		s.attemptRestart()
		return
	}
	if forward != nil && !forward.IsAlive() {
		s.logger.Error("port forward died, attempting restart")
		s.attemptRestart()
		return
	}
	if !s.isWDARunning() {
		s.logger.Error("WDA health check failed, attempting restart")
		s.attemptRestart()
		return
	}
}

// attemptRestart re-runs the start sequence with force=true on the
// tunnel, guarded by a cooldown. It is called only from the monitor and
// therefore does not take the start lock.
func (s *Server) attemptRestart() {
	s.restartMu.Lock()
	since := time.Since(s.lastRestart)
	if since < restartCooldown {
		s.restartMu.Unlock()
		s.logger.Warn("restart cooldown active", zap.Duration("since_last_restart", since))
		return
	}
	s.lastRestart = time.Now()
	s.restartMu.Unlock()

	s.setState(StateRestarting)
	s.terminateChildren()

	if err := s.tunnel.StartTunnel(s.udid, true); err != nil {
		s.logger.Error("failed to restart tunnel", zap.Error(err))
		s.setState(StateFailed)
		return
	}
	if err := s.startForwards(); err != nil {
		s.logger.Error("failed to restart port forwards", zap.Error(err))
		s.setState(StateFailed)
		return
	}
	if err := s.startRunner(); err != nil {
		s.logger.Error("failed to restart WDA runner", zap.Error(err))
		s.setState(StateFailed)
		return
	}
	if !s.waitForWDAReady(wdaStartTimeout) {
		s.logger.Error("WDA did not become ready after restart")
		s.setState(StateFailed)
		return
	}

	s.logger.Info("WDA restarted successfully")
	s.setState(StateRunning)
}

// Close stops the monitor, terminates every owned child (but not the
// shared tunnel — it only releases its reference), and closes logs.
func (s *Server) Close() {
	unregister(s)
	s.stopMonitor()
	s.logger.Info("closing go-ios WDA server")
	s.terminateChildren()
	s.tunnel.ReleaseDevice(s.udid)
}

// IsAlive reports whether the runner process is alive and its port
// accepts connections.
func (s *Server) IsAlive() bool {
	s.mu.Lock()
	wda := s.wda
	s.mu.Unlock()
	return wda != nil && wda.IsAlive() && s.isPortOpen(s.port, 500*time.Millisecond)
}

func (s *Server) isPortOpen(port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

type statusResponse struct {
	Value map[string]any `json:"value"`
}

func (s *Server) isWDARunning() bool {
	if !s.isPortOpen(s.port, 500*time.Millisecond) {
		return false
	}
	resp, err := s.httpClient.Get(fmt.Sprintf("http://127.0.0.1:%d/status", s.port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false
	}
	if parsed.Value == nil {
		return false
	}
	_, hasReady := parsed.Value["ready"]
	_, hasState := parsed.Value["state"]
	return hasReady || hasState
}

func (s *Server) waitForWDAReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		wda, forward := s.wda, s.forward
		s.mu.Unlock()
		if wda != nil && !wda.IsAlive() {
			return false
		}
		if forward != nil && !forward.IsAlive() {
			return false
		}
		if s.isWDARunning() {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func (s *Server) waitForPortClose(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !s.isPortOpen(s.port, 100*time.Millisecond) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// cleanupStaleProcesses kills whatever process currently owns s.port,
// using the OS-appropriate tool. Best-effort: Windows is left for manual
// cleanup, matching the original tool.
func (s *Server) cleanupStaleProcesses() {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", s.port)).Output()
		if err != nil {
			s.logger.Debug("lsof found no stale owner", zap.Error(err))
			return
		}
		for _, line := range splitLines(string(out)) {
			if line == "" {
				continue
			}
			if err := exec.Command("kill", "-9", line).Run(); err != nil {
				s.logger.Debug("failed to kill stale process", zap.String("pid", line), zap.Error(err))
			} else {
				s.logger.Info("killed stale process owning WDA port", zap.String("pid", line))
			}
		}
	case "linux":
		if err := exec.Command("fuser", "-k", fmt.Sprintf("%d/tcp", s.port)).Run(); err != nil {
			s.logger.Debug("fuser found no stale owner", zap.Error(err))
		} else {
			s.logger.Info("killed stale processes owning WDA port")
		}
	default:
		s.logger.Warn("stale-port cleanup not implemented on this OS", zap.String("os", runtime.GOOS))
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, trimCR(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, trimCR(s[start:]))
	}
	return out
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

func shortUDID(udid string) string {
	if len(udid) > 8 {
		return udid[:8]
	}
	return udid
}
