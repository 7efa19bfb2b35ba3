// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package iosdriver implements a driver.Driver that wraps the HTTP client
// of the on-device WebDriverAgent runner managed by internal/ioswda.
package iosdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/hierarchy"
	"github.com/uiautodev/uiautodev/internal/ioswda"
)

// Tuning is the MJPEG tuning settings applied at session creation. A nil
// field pointer omits that key from the emitted settings.
type Tuning struct {
	MjpegServerFramerate         *int
	MjpegServerScreenshotQuality *int
	MjpegScalingFactor           *int
}

// DefaultTuning is the baseline MJPEG tuning applied when a session
// creation request specifies none.
func DefaultTuning() Tuning {
	fps, quality, scale := 30, 50, 50
	return Tuning{
		MjpegServerFramerate:         &fps,
		MjpegServerScreenshotQuality: &quality,
		MjpegScalingFactor:           &scale,
	}
}

func (t Tuning) settingsMap() map[string]any {
	m := map[string]any{}
	if t.MjpegServerFramerate != nil {
		m["mjpegServerFramerate"] = *t.MjpegServerFramerate
	}
	if t.MjpegServerScreenshotQuality != nil {
		m["mjpegServerScreenshotQuality"] = *t.MjpegServerScreenshotQuality
	}
	if t.MjpegScalingFactor != nil {
		m["mjpegScalingFactor"] = *t.MjpegScalingFactor
	}
	return m
}

// Server is the subset of *ioswda.Server the driver depends on.
type Server interface {
	Start() error
	WDABaseURL() string
	MJPEGPort() int
}

var _ Server = (*ioswda.Server)(nil)

// Driver wraps the WebDriverAgent HTTP API behind driver.Driver.
type Driver struct {
	logger *zap.Logger
	serial driver.Serial
	wda    Server
	http   *http.Client
	tuning Tuning

	mu        sync.Mutex
	sessionID string
}

// New builds a Driver for serial backed by wda, which must already be
// constructed (not necessarily started — New ensures it is started).
func New(logger *zap.Logger, serial driver.Serial, wda Server, tuning Tuning) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := wda.Start(); err != nil {
		return nil, fmt.Errorf("ensure WDA server started for %s: %w", serial, err)
	}
	return &Driver{
		logger: logger.With(zap.String("serial", string(serial))),
		serial: serial,
		wda:    wda,
		http:   &http.Client{Timeout: 30 * time.Second},
		tuning: tuning,
	}, nil
}

func (d *Driver) Serial() driver.Serial     { return d.serial }
func (d *Driver) Platform() driver.Platform { return platformkind.IOS }

func (d *Driver) url(path string) string { return d.wda.WDABaseURL() + path }

func (d *Driver) request(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	switch {
	case body != nil:
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	case method == http.MethodPost:
		reader = bytes.NewReader([]byte("{}"))
	default:
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.url(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: wda request %s %s: %v", driver.ErrHelperSpawnFailure, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: wda %s %s returned %d", driver.ErrFatal, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type sessionValue struct {
	SessionID string `json:"sessionId"`
}

// ensureSession creates a WDA session with the MJPEG tuning capabilities
// if one is not already active. On rejection it falls back to the
// runner's live settings endpoint; if both fail it proceeds untuned.
func (d *Driver) ensureSession(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.sessionID != "" {
		id := d.sessionID
		d.mu.Unlock()
		return id, nil
	}
	d.mu.Unlock()

	payload := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": d.tuning.settingsMap(),
		},
	}
	var result struct {
		Value sessionValue `json:"value"`
	}
	err := d.request(ctx, http.MethodPost, "/session", payload, &result)
	if err == nil && result.Value.SessionID != "" {
		d.mu.Lock()
		d.sessionID = result.Value.SessionID
		d.mu.Unlock()
		return result.Value.SessionID, nil
	}
	d.logger.Warn("WDA rejected tuning capabilities, falling back to plain session", zap.Error(err))

	err = d.request(ctx, http.MethodPost, "/session", map[string]any{"capabilities": map[string]any{}}, &result)
	if err != nil || result.Value.SessionID == "" {
		return "", fmt.Errorf("%w: create WDA session: %v", driver.ErrFatal, err)
	}
	d.mu.Lock()
	d.sessionID = result.Value.SessionID
	d.mu.Unlock()

	settingsErr := d.request(ctx, http.MethodPost, fmt.Sprintf("/session/%s/appium/settings", result.Value.SessionID),
		map[string]any{"settings": d.tuning.settingsMap()}, nil)
	if settingsErr != nil {
		d.logger.Warn("failed to apply MJPEG tuning via live settings endpoint, proceeding without tuning", zap.Error(settingsErr))
	}
	return result.Value.SessionID, nil
}

func (d *Driver) sessionPath(ctx context.Context, suffix string) (string, error) {
	id, err := d.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/session/%s%s", id, suffix), nil
}

func (d *Driver) Tap(ctx context.Context, x, y int) error {
	path, err := d.sessionPath(ctx, "/wda/tap/0")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, map[string]any{"x": x, "y": y}, nil)
}

func (d *Driver) Swipe(ctx context.Context, from, to driver.Point, durationSeconds float64) error {
	path, err := d.sessionPath(ctx, "/wda/dragfromtoforduration")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, map[string]any{
		"fromX": from.X, "fromY": from.Y, "toX": to.X, "toY": to.Y, "duration": durationSeconds,
	}, nil)
}

func (d *Driver) SendKeys(ctx context.Context, text string) error {
	path, err := d.sessionPath(ctx, "/wda/keys")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, map[string]any{"value": []string{text}}, nil)
}

func (d *Driver) ClearText(ctx context.Context) error {
	path, err := d.sessionPath(ctx, "/wda/keys")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, map[string]any{"value": []string{""}}, nil)
}

func (d *Driver) Home(ctx context.Context) error {
	path, err := d.sessionPath(ctx, "/wda/homescreen")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, nil, nil)
}

func (d *Driver) Back(ctx context.Context) error {
	path, err := d.sessionPath(ctx, "/wda/navigationBack")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, nil, nil)
}

func (d *Driver) AppSwitch(ctx context.Context) error {
	return d.pressButton(ctx, "appSwitch")
}

func (d *Driver) VolumeUp(ctx context.Context) error   { return d.pressButton(ctx, "volumeUp") }
func (d *Driver) VolumeDown(ctx context.Context) error { return d.pressButton(ctx, "volumeDown") }
func (d *Driver) VolumeMute(ctx context.Context) error { return d.pressButton(ctx, "volumeMute") }

// WakeUp has no dedicated WDA endpoint; the home button press wakes the
// screen as a side effect, matching the runner's observed behavior.
func (d *Driver) WakeUp(ctx context.Context) error { return d.Home(ctx) }

func (d *Driver) pressButton(ctx context.Context, name string) error {
	path, err := d.sessionPath(ctx, "/wda/pressButton")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, map[string]any{"name": name}, nil)
}

func (d *Driver) InstallApp(ctx context.Context, appPath string) error {
	return fmt.Errorf("%w: installApp is not supported by the WDA runner, use ios CLI install tooling directly", driver.ErrInvalidArgument)
}

func (d *Driver) AppLaunch(ctx context.Context, packageName string) error {
	path, err := d.sessionPath(ctx, "/wda/apps/launch")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, map[string]any{"bundleId": packageName}, nil)
}

func (d *Driver) AppTerminate(ctx context.Context, packageName string) error {
	path, err := d.sessionPath(ctx, "/wda/apps/terminate")
	if err != nil {
		return err
	}
	return d.request(ctx, http.MethodPost, path, map[string]any{"bundleId": packageName}, nil)
}

func (d *Driver) AppCurrent(ctx context.Context) (driver.AppInfo, error) {
	path, err := d.sessionPath(ctx, "/wda/activeAppInfo")
	if err != nil {
		return driver.AppInfo{}, err
	}
	var result struct {
		Value struct {
			BundleID string `json:"bundleId"`
			Name     string `json:"name"`
		} `json:"value"`
	}
	if err := d.request(ctx, http.MethodGet, path, nil, &result); err != nil {
		return driver.AppInfo{}, err
	}
	return driver.AppInfo{PackageName: result.Value.BundleID, VersionName: result.Value.Name}, nil
}

func (d *Driver) AppList(ctx context.Context) ([]driver.AppInfo, error) {
	path, err := d.sessionPath(ctx, "/wda/apps/list")
	if err != nil {
		return nil, err
	}
	var result struct {
		Value []struct {
			BundleID string `json:"bundleId"`
			Name     string `json:"name"`
		} `json:"value"`
	}
	if err := d.request(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	apps := make([]driver.AppInfo, 0, len(result.Value))
	for _, a := range result.Value {
		apps = append(apps, driver.AppInfo{PackageName: a.BundleID, VersionName: a.Name})
	}
	return apps, nil
}

func (d *Driver) WindowSize(ctx context.Context) (driver.WindowSize, error) {
	path, err := d.sessionPath(ctx, "/window/size")
	if err != nil {
		return driver.WindowSize{}, err
	}
	var result struct {
		Value struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"value"`
	}
	if err := d.request(ctx, http.MethodGet, path, nil, &result); err != nil {
		return driver.WindowSize{}, err
	}
	return driver.WindowSize{Width: int(result.Value.Width), Height: int(result.Value.Height)}, nil
}

func (d *Driver) DumpHierarchy(ctx context.Context) (string, *hierarchy.Node, error) {
	path, err := d.sessionPath(ctx, "/source?format=xml")
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url(path), nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: fetch WDA source: %v", driver.ErrHelperSpawnFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", nil, fmt.Errorf("%w: WDA source endpoint returned %d", driver.ErrFatal, resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", nil, err
	}
	rawXML := buf.String()

	tree, err := hierarchy.Parse(rawXML, platformkind.IOS)
	if err != nil {
		return rawXML, nil, err
	}
	return rawXML, tree, nil
}

func (d *Driver) Screenshot(ctx context.Context, id int) ([]byte, error) {
	if id > 0 {
		return nil, fmt.Errorf("%w: multi-display is not supported", driver.ErrInvalidArgument)
	}

	var result struct {
		Value string `json:"value"`
	}
	if err := d.request(ctx, http.MethodGet, "/screenshot", nil, &result); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(result.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: decode WDA screenshot: %v", driver.ErrParse, err)
	}
	return raw, nil
}

// StartMjpegStream verifies the forwarded MJPEG port is reachable and
// reports the upstream content type, matching the supplemented behavior
// grounded on ios_mjpeg_stream.py (a plain TCP probe was insufficient).
func (d *Driver) StartMjpegStream(ctx context.Context) (bool, error) {
	url := d.GetMjpegURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: mjpeg probe: %v", driver.ErrHelperTimeout, err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !bytes.Contains([]byte(contentType), []byte("multipart/x-mixed-replace")) {
		d.logger.Warn("mjpeg upstream responded with unexpected content type", zap.String("content_type", contentType))
		return false, fmt.Errorf("%w: mjpeg upstream content type %q is not multipart/x-mixed-replace", driver.ErrParse, contentType)
	}
	return true, nil
}

func (d *Driver) GetMjpegURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", d.wda.MJPEGPort())
}

// StopMjpegStream is a no-op: the MJPEG server's lifetime is the
// runner's.
func (d *Driver) StopMjpegStream(ctx context.Context) error { return nil }

var _ driver.Driver = (*Driver)(nil)
