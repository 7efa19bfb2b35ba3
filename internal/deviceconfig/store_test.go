// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package deviceconfig_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/deviceconfig"
)

func TestGetReturnsDefaultsForUnknownUDID(t *testing.T) {
	store, err := deviceconfig.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	entry := store.Get("unknown-udid")
	assert.Equal(t, deviceconfig.DefaultWDABundleID, entry.WDABundleID)
	assert.Equal(t, deviceconfig.DefaultWDAPort, entry.WDAPort)
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := deviceconfig.Open(zap.NewNop(), dir)
	require.NoError(t, err)

	require.NoError(t, store.SetWDABundleID("udid-1", "com.example.WDARunner.xctrunner"))
	require.NoError(t, store.SetWDAPort("udid-1", 9000))

	reopened, err := deviceconfig.Open(zap.NewNop(), dir)
	require.NoError(t, err)
	entry := reopened.Get("udid-1")
	assert.Equal(t, "com.example.WDARunner.xctrunner", entry.WDABundleID)
	assert.Equal(t, 9000, entry.WDAPort)
}

func TestTouchLastSeenAndAll(t *testing.T) {
	store, err := deviceconfig.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.TouchLastSeen("udid-2", now))

	all := store.All()
	require.Contains(t, all, "udid-2")
	assert.True(t, all["udid-2"].LastSeen.Equal(now))
}

func TestClearRevertsToDefaults(t *testing.T) {
	store, err := deviceconfig.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SetWDAPort("udid-3", 8200))
	require.NoError(t, store.Clear("udid-3"))

	entry := store.Get("udid-3")
	assert.Equal(t, deviceconfig.DefaultWDAPort, entry.WDAPort)
}
