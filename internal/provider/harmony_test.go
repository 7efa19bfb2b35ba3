// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHDCListOutputSkipsEmptyMarker(t *testing.T) {
	devices := parseHDCListOutput("[Empty]\n")
	assert.Empty(t, devices)

	devices = parseHDCListOutput("127.0.0.1:5555\nFMR0223C13000649\n")
	require.Len(t, devices, 2)
	assert.Equal(t, "FMR0223C13000649", string(devices[1].Serial))
}

func TestHarmonyProviderGetDeviceDriverReturnsUnavailable(t *testing.T) {
	p := NewHarmonyProvider(nil)
	d, err := p.GetDeviceDriver(context.Background(), "some-serial")
	require.ErrorIs(t, err, ErrHarmonyDriverUnavailable)
	assert.Nil(t, d)
}

func TestHarmonyProviderPlatform(t *testing.T) {
	p := NewHarmonyProvider(nil)
	assert.Equal(t, "harmony", string(p.Platform()))
}
