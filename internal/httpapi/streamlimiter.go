// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"net/http"

	"github.com/go-kit/kit/endpoint"

	"github.com/uiautodev/uiautodev/middleware"
)

// maxConcurrentStreams bounds how many mjpeg proxy streams (HTTP or
// websocket) this process will carry at once. Unlike maxInFlightCommands,
// a stream that arrives once the limit is reached waits for a slot instead
// of failing immediately: streams are long-lived and a client reconnect is
// more disruptive than a short queue delay.
const maxConcurrentStreams = 8

// ErrTooManyStreams is returned to a waiting stream request whose context
// is cancelled before a slot frees up.
var ErrTooManyStreams = ErrTooManyCommands

type streamRequest struct {
	w   http.ResponseWriter
	r   *http.Request
	url string
}

// newStreamLimiterEndpoint wraps h.serveMjpeg in the Concurrent endpoint
// middleware, giving mjpeg streaming a process-wide concurrency ceiling
// distinct from the command dispatch path's reject-on-busy behavior.
func newStreamLimiterEndpoint(h *Handler) endpoint.Endpoint {
	base := func(_ context.Context, request interface{}) (interface{}, error) {
		req := request.(streamRequest)
		h.serveMjpeg(req.w, req.r, req.url)
		return nil, nil
	}
	chain := endpoint.Chain(middleware.Concurrent(maxConcurrentStreams, ErrTooManyStreams))
	return chain(base)
}
