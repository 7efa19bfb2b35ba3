// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package httpapi wires the HTTP surface with gorilla/mux for routing and
// justinas/alice for middleware chaining.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/health"
	"github.com/uiautodev/uiautodev/httputil"
	"github.com/uiautodev/uiautodev/internal/deviceconfig"
	"github.com/uiautodev/uiautodev/internal/dispatch"
	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/mjpeg"
	"github.com/uiautodev/uiautodev/internal/recording"
)

// Version is the build-reported API version surfaced by GET /api/info.
const Version = "0.1.0"

// Deps bundles everything a Handler needs to serve the HTTP surface.
// Providers is keyed by platform name (android/ios/harmony); a platform
// absent from the map is reported as unsupported.
type Deps struct {
	Logger       *zap.Logger
	Providers    map[driver.Platform]driver.Provider
	Dispatcher   *dispatch.Dispatcher
	Recordings   *recording.Store
	ConfigStore  *deviceconfig.Store // iOS WDA bundle id/port overrides; nil disables /ios-config
	Health       *health.Health      // process liveness/stats; nil disables /healthz
	ExtraHeaders map[string]string   // static response headers applied to every route
}

// Handler serves the full HTTP surface.
type Handler struct {
	logger           *zap.Logger
	providers        map[driver.Platform]driver.Provider
	dispatcher       *dispatch.Dispatcher
	dispatchEndpoint endpoint.Endpoint
	streamEndpoint   endpoint.Endpoint
	recordings       *recording.Store
	configStore      *deviceconfig.Store
	mjpegProxy       *mjpeg.Proxy
}

// New builds the Handler and wires its routes through gorilla/mux, wrapped
// in an alice.Chain of request logging and panic recovery (mirroring
// server.Metric.New's alice.New(staticHeaders).Then(...) composition).
func New(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		logger:      logger,
		providers:   deps.Providers,
		dispatcher:  deps.Dispatcher,
		recordings:  deps.Recordings,
		configStore: deps.ConfigStore,
		mjpegProxy:  mjpeg.New(logger, nil),
	}
	if deps.Dispatcher != nil {
		h.dispatchEndpoint = newDispatchEndpoint(deps.Dispatcher)
	}
	h.streamEndpoint = newStreamLimiterEndpoint(h)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/info", h.handleInfo).Methods(http.MethodGet)

	api.HandleFunc("/{platform}/list", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{platform}/{serial}/screenshot/{id}", h.handleScreenshot).Methods(http.MethodGet)
	api.HandleFunc("/{platform}/{serial}/hierarchy", h.handleHierarchy).Methods(http.MethodGet)
	api.HandleFunc("/{platform}/{serial}/command/{command}", h.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/{platform}/{serial}/ios-config", h.handleGetIOSConfig).Methods(http.MethodGet)
	api.HandleFunc("/{platform}/{serial}/ios-config", h.handleSetIOSConfig).Methods(http.MethodPost)
	api.HandleFunc("/{platform}/{serial}/mjpeg", h.handleMjpeg).Methods(http.MethodGet)

	router.HandleFunc("/recordings/save", h.handleSaveRecording).Methods(http.MethodPost)
	router.HandleFunc("/recordings/list", h.handleListRecordings).Methods(http.MethodGet)
	router.HandleFunc("/recordings/load", h.handleLoadRecording).Methods(http.MethodGet)
	router.HandleFunc("/recordings/delete", h.handleDeleteRecording).Methods(http.MethodDelete)

	router.HandleFunc("/ws/android/scrcpy/{serial}", h.handleUnsupportedStream("android scrcpy"))
	router.HandleFunc("/ws/harmony/mjpeg/{serial}", h.handleUnsupportedStream("harmony mjpeg"))

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if deps.Health != nil {
		router.Handle("/healthz", deps.Health).Methods(http.MethodGet)
	}

	chain := alice.New(h.recoverMiddleware, h.loggingMiddleware, httputil.ApplyHeaders(deps.ExtraHeaders))
	return chain.Then(router)
}

// recoverMiddleware converts a handler panic into a 500, keeping the
// process alive: log and continue, never take down the process for a
// single request.
func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic handling request", zap.Any("recovered", rec), zap.String("path", r.URL.Path))
				writeErrorf(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs one line per request: method, path, and duration,
// duration appended last to match the rest of this module's field ordering.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) providerFor(platform driver.Platform) (driver.Provider, bool) {
	p, ok := h.providers[platform]
	return p, ok
}
