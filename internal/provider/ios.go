// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/deviceconfig"
	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/iosdriver"
	"github.com/uiautodev/uiautodev/internal/iostunnel"
	"github.com/uiautodev/uiautodev/internal/ioswda"
)

// IOSProvider lists attached iOS devices and builds one WDA-backed
// driver.Driver per UDID, mirroring provider.py's IOSProvider: a global
// default WDA bundle ID/port applied to every device unless the device
// already carries its own configStore entry.
type IOSProvider struct {
	logger      *zap.Logger
	tunnel      *iostunnel.Manager
	configStore *deviceconfig.Store
	bundleID    string
	port        int
	drivers     *driverRegistry
}

// NewIOSProvider builds an IOSProvider. bundleID/port are global defaults
// applied to a device with no prior configStore entry; pass "", 0 to fall
// back entirely to deviceconfig's package defaults.
func NewIOSProvider(logger *zap.Logger, tunnel *iostunnel.Manager, configStore *deviceconfig.Store, bundleID string, port int) *IOSProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IOSProvider{
		logger:      logger,
		tunnel:      tunnel,
		configStore: configStore,
		bundleID:    bundleID,
		port:        port,
		drivers:     newDriverRegistry(),
	}
}

func (p *IOSProvider) Platform() driver.Platform { return platformkind.IOS }

// List enumerates attached UDIDs via `ios list`, go-ios's wrapper around
// the usbmux protocol already relied on by internal/iostunnel and
// internal/ioswda for tunnel and runner control. Model/name are left
// unknown, matching list_devices' usbmux-only enumeration in provider.py.
func (p *IOSProvider) List(ctx context.Context) ([]driver.DeviceInfo, error) {
	out, err := exec.CommandContext(ctx, "ios", "list").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ios list: %s", driver.ErrHelperSpawnFailure, exitErrOutput(err))
	}
	return parseIOSListOutput(string(out)), nil
}

func parseIOSListOutput(out string) []driver.DeviceInfo {
	var devices []driver.DeviceInfo
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		udid := strings.TrimSpace(scanner.Text())
		if udid == "" {
			continue
		}
		devices = append(devices, driver.DeviceInfo{
			Serial:  driver.Serial(udid),
			Status:  "device",
			Name:    "unknown",
			Model:   "unknown",
			Enabled: true,
		})
	}
	return devices
}

// GetDeviceDriver builds (or reuses) the WDA server and driver for udid.
func (p *IOSProvider) GetDeviceDriver(ctx context.Context, serial driver.Serial) (driver.Driver, error) {
	return p.drivers.getOrCreate(serial, func() (driver.Driver, error) {
		wda := ioswda.New(p.logger, string(serial), p.tunnel, p.configStore, p.bundleID, p.port)
		d, err := iosdriver.New(p.logger, serial, wda, iosdriver.DefaultTuning())
		if err != nil {
			logFieldErr(p.logger, "failed to build iOS driver", serial, err)
			return nil, err
		}
		return d, nil
	})
}

// ReleaseDevice drops the cached driver and releases the shared tunnel
// reference, leaving the tunnel itself running for fast reconnection.
func (p *IOSProvider) ReleaseDevice(serial driver.Serial) {
	p.drivers.release(serial)
	p.tunnel.ReleaseDevice(string(serial))
}

var _ driver.Provider = (*IOSProvider)(nil)
