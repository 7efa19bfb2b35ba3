// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
)

// ErrHarmonyDriverUnavailable is returned by HarmonyProvider.GetDeviceDriver.
// Device enumeration over hdc is straightforward to shell out to, but no
// HarmonyOS UI automation driver is implemented: the reference tool's
// HarmonyDriver sits on top of the Python-only hypium SDK, which has no Go
// equivalent to wrap.
var ErrHarmonyDriverUnavailable = fmt.Errorf("%w: harmony device automation is not implemented", driver.ErrFatal)

// HarmonyProvider lists connected HarmonyOS targets via hdc. It cannot
// build a driver.Driver for any of them (see ErrHarmonyDriverUnavailable).
type HarmonyProvider struct {
	logger *zap.Logger
}

// NewHarmonyProvider builds a HarmonyProvider.
func NewHarmonyProvider(logger *zap.Logger) *HarmonyProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HarmonyProvider{logger: logger}
}

func (p *HarmonyProvider) Platform() driver.Platform { return platformkind.Harmony }

// List enumerates connected targets via `hdc list targets`, mirroring
// HDC.list_device's CLI-shelling approach (no hdc source survives in the
// retained reference material, so the command is built from the hdc CLI's
// documented surface rather than ported from an existing implementation).
func (p *HarmonyProvider) List(ctx context.Context) ([]driver.DeviceInfo, error) {
	out, err := exec.CommandContext(ctx, "hdc", "list", "targets").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: hdc list targets: %s", driver.ErrHelperSpawnFailure, exitErrOutput(err))
	}
	return parseHDCListOutput(string(out)), nil
}

func parseHDCListOutput(out string) []driver.DeviceInfo {
	var devices []driver.DeviceInfo
	for _, line := range strings.Split(out, "\n") {
		serial := strings.TrimSpace(line)
		if serial == "" || strings.EqualFold(serial, "[Empty]") {
			continue
		}
		devices = append(devices, driver.DeviceInfo{
			Serial:  driver.Serial(serial),
			Status:  "device",
			Name:    "unknown",
			Model:   "unknown",
			Enabled: true,
		})
	}
	return devices
}

// GetDeviceDriver always fails: see ErrHarmonyDriverUnavailable.
func (p *HarmonyProvider) GetDeviceDriver(ctx context.Context, serial driver.Serial) (driver.Driver, error) {
	p.logger.Warn("harmony device driver requested but not implemented", zap.String("serial", string(serial)))
	return nil, ErrHarmonyDriverUnavailable
}

// ReleaseDevice is a no-op: no driver is ever cached for a Harmony serial.
func (p *HarmonyProvider) ReleaseDevice(serial driver.Serial) {}

var _ driver.Provider = (*HarmonyProvider)(nil)
