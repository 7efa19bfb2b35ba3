// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var mjpegUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveMjpeg proxies url to the client: a binary websocket feed when the
// request carries an Upgrade: websocket header, an HTTP multipart feed
// otherwise, both via internal/mjpeg.Proxy.
func (h *Handler) serveMjpeg(w http.ResponseWriter, r *http.Request, url string) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		conn, err := mjpegUpgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("mjpeg websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()
		if err := h.mjpegProxy.ServeWebSocket(r.Context(), conn, url); err != nil {
			h.logger.Debug("mjpeg websocket stream ended", zap.Error(err))
		}
		return
	}

	if err := h.mjpegProxy.ServeHTTP(r.Context(), w, url); err != nil {
		writeDriverError(w, err)
	}
}
