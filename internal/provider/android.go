// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/android"
	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
)

// DriverBackend selects which android.Driver implementation
// AndroidProvider builds, matching provider.py's AndroidProvider(driver_class=...)
// constructor parameter (U2AndroidDriver vs ADBAndroidDriver).
type DriverBackend int

const (
	// AgentBackend layers the on-device uiautomator2 agent over the bridge
	// (the default, matching U2AndroidDriver).
	AgentBackend DriverBackend = iota
	// BridgeBackend uses adb shell calls only (matching ADBAndroidDriver).
	BridgeBackend
)

// AndroidProvider lists attached Android devices via adb and hands out one
// driver.Driver per serial.
type AndroidProvider struct {
	logger  *zap.Logger
	backend DriverBackend
	drivers *driverRegistry
}

// NewAndroidProvider builds an AndroidProvider using backend for every
// device driver it constructs.
func NewAndroidProvider(logger *zap.Logger, backend DriverBackend) *AndroidProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AndroidProvider{logger: logger, backend: backend, drivers: newDriverRegistry()}
}

func (p *AndroidProvider) Platform() driver.Platform { return platformkind.Android }

func (p *AndroidProvider) List(ctx context.Context) ([]driver.DeviceInfo, error) {
	return android.ListDevices(ctx)
}

func (p *AndroidProvider) GetDeviceDriver(ctx context.Context, serial driver.Serial) (driver.Driver, error) {
	return p.drivers.getOrCreate(serial, func() (driver.Driver, error) {
		switch p.backend {
		case BridgeBackend:
			return android.NewBridgeDriver(p.logger, serial), nil
		default:
			d := android.NewAgentDriver(p.logger, serial)
			d.Connect()
			return d, nil
		}
	})
}

func (p *AndroidProvider) ReleaseDevice(serial driver.Serial) {
	p.drivers.release(serial)
}

var _ driver.Provider = (*AndroidProvider)(nil)
