// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package android implements the two interchangeable Android driver
// backends: a bridge (adb) driver, and an agent driver that layers an
// on-device RPC client over it with bridge-level fallback.
package android

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/hierarchy"
)

const (
	defaultScreenshotTimeout = 15 * time.Second
	defaultHierarchyTimeout  = 20 * time.Second

	screenshotTimeoutEnv = "UIAUTODEV_ANDROID_SCREENSHOT_TIMEOUT"
	hierarchyTimeoutEnv  = "UIAUTODEV_ANDROID_HIERARCHY_TIMEOUT"

	uidumpRemotePath = "/data/local/tmp/uidump.xml"
)

// BridgeDriver implements driver.Driver entirely through `adb` CLI shell
// calls, matching the surface of Python's adbutils. No Go adb client
// library exists in this module's dependency corpus, so the bridge shells
// out directly (see DESIGN.md).
type BridgeDriver struct {
	logger *zap.Logger
	serial driver.Serial
}

// NewBridgeDriver builds a BridgeDriver bound to serial.
func NewBridgeDriver(logger *zap.Logger, serial driver.Serial) *BridgeDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeDriver{logger: logger.With(zap.String("serial", string(serial))), serial: serial}
}

func (b *BridgeDriver) Serial() driver.Serial     { return b.serial }
func (b *BridgeDriver) Platform() driver.Platform { return platformkind.Android }

func (b *BridgeDriver) adbCmd(ctx context.Context, args ...string) *exec.Cmd {
	full := append([]string{"-s", string(b.serial)}, args...)
	return exec.CommandContext(ctx, "adb", full...)
}

func (b *BridgeDriver) shellOutput(ctx context.Context, args ...string) (string, error) {
	cmd := b.adbCmd(ctx, append([]string{"shell"}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: adb shell %v: %s", driver.ErrFatal, args, exitErrOutput(err))
	}
	return string(out), nil
}

func exitErrOutput(err error) string {
	if ee, ok := err.(*exec.ExitError); ok {
		return string(ee.Stderr)
	}
	return err.Error()
}

func envTimeout(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

func (b *BridgeDriver) Tap(ctx context.Context, x, y int) error {
	_, err := b.shellOutput(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

func (b *BridgeDriver) Swipe(ctx context.Context, from, to driver.Point, durationSeconds float64) error {
	ms := int64(durationSeconds * 1000)
	_, err := b.shellOutput(ctx, "input", "swipe",
		strconv.Itoa(from.X), strconv.Itoa(from.Y), strconv.Itoa(to.X), strconv.Itoa(to.Y), strconv.FormatInt(ms, 10))
	return err
}

func (b *BridgeDriver) SendKeys(ctx context.Context, text string) error {
	_, err := b.shellOutput(ctx, "input", "text", shellQuote(text))
	return err
}

func (b *BridgeDriver) ClearText(ctx context.Context) error {
	for i := 0; i < 3; i++ {
		if _, err := b.shellOutput(ctx, "input", "keyevent", "--longpress", "DEL"); err != nil {
			return err
		}
	}
	return nil
}

func (b *BridgeDriver) Home(ctx context.Context) error       { return b.keyevent(ctx, "HOME") }
func (b *BridgeDriver) Back(ctx context.Context) error       { return b.keyevent(ctx, "BACK") }
func (b *BridgeDriver) AppSwitch(ctx context.Context) error  { return b.keyevent(ctx, "APP_SWITCH") }
func (b *BridgeDriver) VolumeUp(ctx context.Context) error   { return b.keyevent(ctx, "VOLUME_UP") }
func (b *BridgeDriver) VolumeDown(ctx context.Context) error { return b.keyevent(ctx, "VOLUME_DOWN") }
func (b *BridgeDriver) VolumeMute(ctx context.Context) error { return b.keyevent(ctx, "VOLUME_MUTE") }
func (b *BridgeDriver) WakeUp(ctx context.Context) error     { return b.keyevent(ctx, "WAKEUP") }

func (b *BridgeDriver) keyevent(ctx context.Context, key string) error {
	_, err := b.shellOutput(ctx, "input", "keyevent", key)
	return err
}

func (b *BridgeDriver) InstallApp(ctx context.Context, appPath string) error {
	out, err := b.adbCmd(ctx, "install", "-r", appPath).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: adb install %s: %s", driver.ErrFatal, appPath, string(out))
	}
	return nil
}

func (b *BridgeDriver) AppLaunch(ctx context.Context, packageName string) error {
	_, err := b.shellOutput(ctx, "monkey", "-p", packageName, "-c", "android.intent.category.LAUNCHER", "1")
	return err
}

func (b *BridgeDriver) AppTerminate(ctx context.Context, packageName string) error {
	_, err := b.shellOutput(ctx, "am", "force-stop", packageName)
	return err
}

var resumedActivityRe = regexp.MustCompile(`mResumedActivity:.*? ([\w.]+)/([\w.]+)`)

func (b *BridgeDriver) AppCurrent(ctx context.Context) (driver.AppInfo, error) {
	out, err := b.shellOutput(ctx, "dumpsys", "activity", "activities")
	if err != nil {
		return driver.AppInfo{}, err
	}
	m := resumedActivityRe.FindStringSubmatch(out)
	if m == nil {
		return driver.AppInfo{}, fmt.Errorf("%w: no resumed activity found", driver.ErrParse)
	}
	return driver.AppInfo{PackageName: m[1]}, nil
}

var (
	versionNameRe = regexp.MustCompile(`versionName=(\S+)`)
	versionCodeRe = regexp.MustCompile(`versionCode=(\d+)`)
	packageLineRe = regexp.MustCompile(`(?m)^package:(\S+)\r?$`)
)

func (b *BridgeDriver) AppList(ctx context.Context) ([]driver.AppInfo, error) {
	out, err := b.shellOutput(ctx, "pm", "list", "packages", "-3")
	if err != nil {
		return nil, err
	}

	var apps []driver.AppInfo
	for _, m := range packageLineRe.FindAllStringSubmatch(out, -1) {
		pkg := m[1]
		info := driver.AppInfo{PackageName: pkg}
		dump, err := b.shellOutput(ctx, "dumpsys", "package", pkg)
		if err == nil {
			if vm := versionNameRe.FindStringSubmatch(dump); vm != nil && vm[1] != "null" {
				info.VersionName = vm[1]
			}
			if cm := versionCodeRe.FindStringSubmatch(dump); cm != nil {
				info.VersionCode = cm[1]
			}
		}
		apps = append(apps, info)
	}
	return apps, nil
}

var windowSizeRe = regexp.MustCompile(`(?:Physical size|size): (\d+)x(\d+)`)

func (b *BridgeDriver) WindowSize(ctx context.Context) (driver.WindowSize, error) {
	out, err := b.shellOutput(ctx, "wm", "size")
	if err != nil {
		return driver.WindowSize{}, err
	}
	m := windowSizeRe.FindStringSubmatch(out)
	if m == nil {
		return driver.WindowSize{}, fmt.Errorf("%w: unparseable wm size output %q", driver.ErrParse, out)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return driver.WindowSize{Width: w, Height: h}, nil
}

// DumpHierarchy dumps via `uiautomator dump`, retrying once if the
// helper was killed by a concurrently running uiautomator2 server.
func (b *BridgeDriver) DumpHierarchy(ctx context.Context) (string, *hierarchy.Node, error) {
	timeout := envTimeout(hierarchyTimeoutEnv, defaultHierarchyTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rawXML string
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), 1)
	op := func() error {
		xml, err := b.dumpHierarchyRaw(ctx)
		if err != nil {
			return err
		}
		rawXML = xml
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return "", nil, fmt.Errorf("dump hierarchy: %w", err)
	}

	tree, err := hierarchy.Parse(rawXML, platformkind.Android)
	if err != nil {
		return rawXML, nil, err
	}
	return rawXML, tree, nil
}

func (b *BridgeDriver) dumpHierarchyRaw(ctx context.Context) (string, error) {
	out, err := b.shellOutput(ctx, "sh", "-c", fmt.Sprintf("rm -f %s; uiautomator dump %s && echo success", uidumpRemotePath, uidumpRemotePath))
	if err != nil {
		return "", err
	}
	if strings.Contains(out, "ERROR") || !strings.Contains(out, "success") {
		if strings.Contains(out, "Killed") {
			b.killAppProcess(ctx)
		}
		return "", fmt.Errorf("uiautomator dump failed: %s", strings.TrimSpace(out))
	}

	xml, err := b.shellOutput(ctx, "cat", uidumpRemotePath)
	if err != nil {
		return "", fmt.Errorf("read uidump: %w", err)
	}
	return xml, nil
}

func (b *BridgeDriver) killAppProcess(ctx context.Context) {
	out, err := b.shellOutput(ctx, "sh", "-c", "ps -A || ps")
	if err != nil {
		return
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "app_process") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		_, _ = b.shellOutput(ctx, "kill", fields[1])
	}
}

// rawFramebufferHeaderSize is the size of the header `adb exec-out screencap`
// (no -p) emits before the raw pixel bytes: width, height, and Android
// PixelFormat, each a little-endian uint32.
const rawFramebufferHeaderSize = 12

// pixelFormatRGBA8888 is Android's android.graphics.PixelFormat.RGBA_8888,
// the only raw framebuffer layout this fallback decodes.
const pixelFormatRGBA8888 = 1

func (b *BridgeDriver) Screenshot(ctx context.Context, id int) ([]byte, error) {
	if id > 0 {
		return nil, fmt.Errorf("%w: multi-display is not supported yet", driver.ErrInvalidArgument)
	}

	timeout := envTimeout(screenshotTimeoutEnv, defaultScreenshotTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := b.adbCmd(ctx, "exec-out", "screencap", "-p").Output()
	if err == nil {
		return out, nil
	}
	b.logger.Warn("adb screencap -p failed, falling back to raw framebuffer capture", zap.Error(err))

	raw, rawErr := b.adbCmd(ctx, "exec-out", "screencap").Output()
	if rawErr != nil {
		return nil, fmt.Errorf("%w: screencap: %s", driver.ErrFatal, exitErrOutput(err))
	}
	encoded, decodeErr := encodeRawFramebuffer(raw)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode raw framebuffer: %s", driver.ErrFatal, decodeErr)
	}
	return encoded, nil
}

// encodeRawFramebuffer parses the header+pixel layout `adb exec-out
// screencap` (without -p) writes and re-encodes it as PNG, the fallback
// path taken when the on-device PNG encoder that backs `screencap -p`
// fails or is unavailable (the same raw-framebuffer path adbutils'
// AdbDevice.screenshot falls back to).
func encodeRawFramebuffer(raw []byte) ([]byte, error) {
	if len(raw) < rawFramebufferHeaderSize {
		return nil, fmt.Errorf("raw framebuffer too short: %d bytes", len(raw))
	}
	width := int(binary.LittleEndian.Uint32(raw[0:4]))
	height := int(binary.LittleEndian.Uint32(raw[4:8]))
	format := binary.LittleEndian.Uint32(raw[8:12])
	if format != pixelFormatRGBA8888 {
		return nil, fmt.Errorf("unsupported raw framebuffer pixel format: %d", format)
	}
	pix := raw[rawFramebufferHeaderSize:]
	if want := width * height * 4; len(pix) < want {
		return nil, fmt.Errorf("raw framebuffer pixel data too short: want %d, got %d", want, len(pix))
	}

	img := &image.NRGBA{Pix: pix[:width*height*4], Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode raw framebuffer as png: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *BridgeDriver) StartMjpegStream(ctx context.Context) (bool, error) {
	return false, fmt.Errorf("%w: android driver has no MJPEG stream, use scrcpy websocket", driver.ErrFatal)
}

func (b *BridgeDriver) GetMjpegURL() string { return "" }

func (b *BridgeDriver) StopMjpegStream(ctx context.Context) error { return nil }

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
