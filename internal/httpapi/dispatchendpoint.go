// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/endpoint"

	"github.com/uiautodev/uiautodev/internal/dispatch"
	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/middleware"
)

// maxInFlightCommands bounds how many device commands this process will
// run at once, across every platform and serial; beyond it, new command
// requests fail fast with 503 rather than queuing indefinitely behind
// slow helper processes.
const maxInFlightCommands = 64

// dispatchRequest carries one command/{serial} invocation through the
// endpoint.Endpoint chain below.
type dispatchRequest struct {
	driver  driver.Driver
	command dispatch.Command
	params  []byte
}

// ErrTooManyCommands is returned once maxInFlightCommands concurrent
// commands are already running.
var ErrTooManyCommands = fmt.Errorf("%w: too many concurrent device commands", driver.ErrFatal)

// newDispatchEndpoint wraps d.Dispatch in the Busy and Timeout endpoint
// middlewares, giving every command request a hard concurrency ceiling
// and a per-call deadline regardless of what the underlying driver does.
func newDispatchEndpoint(d *dispatch.Dispatcher) endpoint.Endpoint {
	base := func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(dispatchRequest)
		return d.Dispatch(ctx, req.driver, req.command, req.params)
	}
	chain := endpoint.Chain(
		middleware.Busy(maxInFlightCommands, ErrTooManyCommands),
		middleware.Timeout(middleware.DefaultTimeout),
	)
	return chain(base)
}
