// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package iostunnel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uiautodev/uiautodev/internal/iostunnel"
)

func longRunningCommand(udid string) (string, []string) {
	return "sleep", []string{"2"}
}

func TestStartTunnelThenReuseIncrementsRefCount(t *testing.T) {
	m := iostunnel.New(zaptest.NewLogger(t), t.TempDir(),
		iostunnel.WithCommand(longRunningCommand),
		iostunnel.WithProcessLookup(func(string) (bool, error) { return false, nil }),
	)

	require.NoError(t, m.StartTunnel("udid-1", false))
	assert.True(t, m.IsTunnelRunning("udid-1"))

	require.NoError(t, m.StartTunnel("udid-1", false))
	m.ReleaseDevice("udid-1")
	m.ReleaseDevice("udid-1")

	assert.True(t, m.IsTunnelRunning("udid-1"), "tunnel should stay warm after refcount hits zero")

	m.Cleanup()
	time.Sleep(50 * time.Millisecond)
}

func TestStartTunnelFailurePropagatesLogTail(t *testing.T) {
	m := iostunnel.New(zaptest.NewLogger(t), t.TempDir(),
		iostunnel.WithCommand(func(udid string) (string, []string) {
			return "sh", []string{"-c", "echo bad-device >&2; exit 1"}
		}),
	)

	err := m.StartTunnel("udid-2", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad-device")
}

func TestForceRestartsTunnel(t *testing.T) {
	m := iostunnel.New(zaptest.NewLogger(t), t.TempDir(),
		iostunnel.WithCommand(longRunningCommand),
	)

	require.NoError(t, m.StartTunnel("udid-3", false))
	require.NoError(t, m.StartTunnel("udid-3", true))
	assert.True(t, m.IsTunnelRunning("udid-3"))

	m.Cleanup()
}
