// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package android

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uiautodev/uiautodev/internal/driver"
)

func TestAgentDriverScreenshotFallsBackWhenNeverConnected(t *testing.T) {
	installFakeADB(t, `echo RAWPNGBYTES`)
	d := NewAgentDriver(zaptest.NewLogger(t), "emulator-5554")

	data, err := d.Screenshot(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, string(data), "RAWPNGBYTES")
}

func TestAgentDriverDumpHierarchyFallsBackWhenNeverConnected(t *testing.T) {
	installFakeADB(t, `
if [ "$4" = "sh" ]; then
  echo "success"
  exit 0
fi
if [ "$4" = "cat" ]; then
  echo "not-valid-hierarchy-xml"
  exit 0
fi
exit 1
`)
	d := NewAgentDriver(zaptest.NewLogger(t), "emulator-5554")

	_, _, err := d.DumpHierarchy(context.Background())
	// the fake shell's "cat" of the uidump file returns text that is not
	// hierarchy XML, so parsing it is expected to error — what matters
	// is that it took the adb fallback path rather than blocking on RPC.
	require.Error(t, err)
}

func TestAgentDriverTapFallsBackToBridgeOnRPCFailure(t *testing.T) {
	installFakeADB(t, `echo ok`)
	d := NewAgentDriver(zaptest.NewLogger(t), "emulator-5554")

	err := d.Tap(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Nil(t, d.currentClient(), "failed rpc client should be invalidated after fallback")
}

func TestAgentDriverSwipeFallsBackToBridgeOnRPCFailure(t *testing.T) {
	installFakeADB(t, `echo ok`)
	d := NewAgentDriver(zaptest.NewLogger(t), "emulator-5554")

	err := d.Swipe(context.Background(), driver.Point{X: 1, Y: 1}, driver.Point{X: 2, Y: 2}, 0.3)
	require.NoError(t, err)
}

func TestAgentDriverSatisfiesDriverInterface(t *testing.T) {
	var _ driver.Driver = NewAgentDriver(zaptest.NewLogger(t), "emulator-5554")
}
