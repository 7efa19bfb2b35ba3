// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package mjpeg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServeHTTPForwardsContentTypeAndBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("--frame\r\nframe-bytes\r\n"))
	}))
	defer upstream.Close()

	p := New(zaptest.NewLogger(t), nil)
	rec := httptest.NewRecorder()

	err := p.ServeHTTP(context.Background(), rec, upstream.URL)
	require.NoError(t, err)
	assert.Contains(t, rec.Header().Get("Content-Type"), "multipart/x-mixed-replace")
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "frame-bytes")
}

func TestServeHTTPDefaultsContentTypeWhenUpstreamOmitsIt(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw"))
	}))
	defer upstream.Close()

	p := New(zaptest.NewLogger(t), nil)
	rec := httptest.NewRecorder()

	require.NoError(t, p.ServeHTTP(context.Background(), rec, upstream.URL))
	assert.Equal(t, "multipart/x-mixed-replace", rec.Header().Get("Content-Type"))
}

func TestServeWebSocketForwardsBinaryFrames(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("frame-payload"))
	}))
	defer upstream.Close()

	upgrader := websocket.Upgrader{}
	wsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		p := New(zaptest.NewLogger(t), nil)
		_ = p.ServeWebSocket(context.Background(), conn, upstream.URL)
	}))
	defer wsServer.Close()

	wsURL := "ws" + wsServer.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, "frame-payload", string(data))
}
