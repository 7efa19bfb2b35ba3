// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ioswda

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/uiautodev/uiautodev/internal/deviceconfig"
	"github.com/uiautodev/uiautodev/internal/iostunnel"
)

func TestAttemptRestartRespectsCooldown(t *testing.T) {
	store, err := deviceconfig.Open(zaptest.NewLogger(t), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tunnel := iostunnel.New(zaptest.NewLogger(t), t.TempDir(),
		iostunnel.WithCommand(func(string) (string, []string) { return "sleep", []string{"5"} }),
		iostunnel.WithProcessLookup(func(string) (bool, error) { return true, nil }),
	)

	srv := New(zaptest.NewLogger(t), "udid-cooldown", tunnel, store, "com.example.bundle", freeTCPPort(t),
		WithWDACommand(func(string, string) (string, []string) { return "sleep", []string{"5"} }),
		WithForwardCommand(func(string, int) (string, []string) { return "sleep", []string{"5"} }),
	)
	defer unregister(srv)

	srv.lastRestart = time.Now()
	before := srv.lastRestart

	srv.attemptRestart()

	assert.Equal(t, before, srv.lastRestart, "restart should be skipped while cooldown is active")
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
