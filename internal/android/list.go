// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package android

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/uiautodev/uiautodev/internal/driver"
)

// ListDevices enumerates attached devices via `adb devices -l`, matching
// adbutils.AdbClient().list(extended=True) from provider.py: a device not
// in the "device" state is reported disabled, with no name/model/product.
func ListDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	out, err := exec.CommandContext(ctx, "adb", "devices", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: adb devices -l: %s", driver.ErrHelperSpawnFailure, exitErrOutput(err))
	}
	return parseDevicesOutput(string(out)), nil
}

func parseDevicesOutput(out string) []driver.DeviceInfo {
	var devices []driver.DeviceInfo
	lines := strings.Split(out, "\n")
	for _, line := range lines[1:] { // skip "List of devices attached" header
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		serial, state := fields[0], fields[1]
		info := driver.DeviceInfo{Serial: driver.Serial(serial), Status: state, Enabled: state == "device"}
		tags := fields[2:]
		if !info.Enabled {
			tags = nil
		}
		for _, tag := range tags {
			switch {
			case strings.HasPrefix(tag, "device:"):
				info.Name = strings.TrimPrefix(tag, "device:")
			case strings.HasPrefix(tag, "model:"):
				info.Model = strings.TrimPrefix(tag, "model:")
			case strings.HasPrefix(tag, "product:"):
				info.Product = strings.TrimPrefix(tag, "product:")
			}
		}
		devices = append(devices, info)
	}
	return devices
}
