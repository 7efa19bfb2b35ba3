// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package mjpeg implements a streaming HTTP/WebSocket proxy that mirrors
// an upstream MJPEG multipart response to a downstream client.
package mjpeg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/xhttp"
)

const (
	chunkSize         = 8 * 1024
	stalledCheckDelay = 2 * time.Second
)

// noTimeoutClient is the xhttp.Client used for upstream connections: the
// proxy has no client-side timeout, since the stream is open-ended.
var noTimeoutClient xhttp.Client = &http.Client{}

// Proxy mirrors an upstream MJPEG multipart stream to HTTP or WebSocket
// downstream clients.
type Proxy struct {
	logger *zap.Logger
	client xhttp.Client
}

// New builds a Proxy. A nil client defaults to a plain *http.Client with
// no request timeout (the stream by nature never completes on its own).
func New(logger *zap.Logger, client xhttp.Client) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = noTimeoutClient
	}
	return &Proxy{logger: logger, client: client}
}

// ServeHTTP proxies upstreamURL's multipart body to w, chunked and with
// caching disabled.
func (p *Proxy) ServeHTTP(ctx context.Context, w http.ResponseWriter, upstreamURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: dial mjpeg upstream: %v", driver.ErrHelperTimeout, err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "multipart/x-mixed-replace"
	}

	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	return p.copyChunked(ctx, resp.Body, w, flusher)
}

func (p *Proxy) copyChunked(ctx context.Context, src io.Reader, dst io.Writer, flusher http.Flusher) error {
	buf := make([]byte, chunkSize)
	frames := 0
	stalledWarned := false
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			frames++
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if !stalledWarned && frames == 0 && time.Since(start) > stalledCheckDelay {
			p.logger.Warn("mjpeg upstream forwarded zero bytes in first 2s, possibly stalled")
			stalledWarned = true
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// ServeWebSocket proxies upstreamURL's body as a sequence of binary
// WebSocket frames, each frame containing one read of up to chunkSize
// bytes; frame edges do not follow the upstream's multipart boundaries.
func (p *Proxy) ServeWebSocket(ctx context.Context, conn *websocket.Conn, upstreamURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: dial mjpeg upstream: %v", driver.ErrHelperTimeout, err)
	}
	defer resp.Body.Close()

	buf := make([]byte, chunkSize)
	frames := 0
	start := time.Now()
	stalledWarned := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			frames++
			if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
				return err
			}
		}
		if !stalledWarned && frames == 0 && time.Since(start) > stalledCheckDelay {
			p.logger.Warn("mjpeg websocket upstream forwarded zero bytes in first 2s, possibly stalled")
			stalledWarned = true
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}
