// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"net/http"

	"github.com/uiautodev/uiautodev/internal/dispatch"
	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/xhttp"
)

// writeErrorf delegates to xhttp.WriteErrorf: a JSON
// {"code": ..., "message": ...} body with the given status.
func writeErrorf(w http.ResponseWriter, code int, format string, args ...interface{}) {
	_, _ = xhttp.WriteErrorf(w, code, format, args...)
}

// statusFor maps a driver sentinel error to the HTTP status it should
// report; unmapped/unknown errors fall back to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, driver.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, driver.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, driver.ErrElementNotFound):
		return http.StatusNotFound
	case errors.Is(err, driver.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, ErrTooManyCommands):
		return http.StatusServiceUnavailable
	case errors.Is(err, driver.ErrFatal):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeDriverError(w http.ResponseWriter, err error) {
	writeErrorf(w, statusFor(err), "%s", err.Error())
}
