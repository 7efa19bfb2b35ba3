// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/uiautodev/uiautodev/internal/dispatch"
	"github.com/uiautodev/uiautodev/internal/driver"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Body may be partially written; nothing more can be done.
		_ = err
	}
}

// handleInfo serves GET /api/info: {version, platform, cwd, drivers},
// matching app.py's info() (platform.system() -> runtime.GOOS, os.getcwd()
// -> os.Getwd()).
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	drivers := make([]string, 0, len(h.providers))
	for p := range h.providers {
		drivers = append(drivers, string(p))
	}
	cwd, _ := os.Getwd()
	writeJSON(w, map[string]any{
		"version":  Version,
		"platform": runtime.GOOS,
		"cwd":      cwd,
		"drivers":  drivers,
	})
}

// handleList serves GET /api/{platform}/list.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	platform := driver.Platform(mux.Vars(r)["platform"])
	p, ok := h.providerFor(platform)
	if !ok {
		writeErrorf(w, http.StatusNotFound, "unsupported platform: %s", platform)
		return
	}

	devices, err := p.List(r.Context())
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, devices)
}

func (h *Handler) resolveDriver(w http.ResponseWriter, r *http.Request) (driver.Driver, bool) {
	vars := mux.Vars(r)
	platform := driver.Platform(vars["platform"])
	serial := driver.Serial(vars["serial"])

	p, ok := h.providerFor(platform)
	if !ok {
		writeErrorf(w, http.StatusNotFound, "unsupported platform: %s", platform)
		return nil, false
	}
	d, err := p.GetDeviceDriver(r.Context(), serial)
	if err != nil {
		writeDriverError(w, err)
		return nil, false
	}
	return d, true
}

// handleScreenshot serves GET /api/{platform}/{serial}/screenshot/{id}.
func (h *Handler) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	d, ok := h.resolveDriver(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeErrorf(w, http.StatusBadRequest, "invalid screenshot id")
		return
	}

	data, err := d.Screenshot(r.Context(), id)
	if err != nil {
		writeDriverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

// handleHierarchy serves GET /api/{platform}/{serial}/hierarchy?format=json|xml.
func (h *Handler) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	d, ok := h.resolveDriver(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	rawXML, tree, err := d.DumpHierarchy(r.Context())
	if err != nil {
		writeDriverError(w, err)
		return
	}

	switch format {
	case "xml":
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, rawXML)
	case "json":
		size, err := d.WindowSize(r.Context())
		if err != nil {
			writeDriverError(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"key":        tree.Key,
			"name":       tree.Name,
			"bounds":     tree.Bounds,
			"properties": tree.Properties,
			"children":   tree.Children,
			"width":      size.Width,
			"height":     size.Height,
		})
	default:
		writeErrorf(w, http.StatusBadRequest, "invalid format: %s", format)
	}
}

// handleCommand serves POST /api/{platform}/{serial}/command/{command}.
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	d, ok := h.resolveDriver(w, r)
	if !ok {
		return
	}
	command := dispatch.Command(mux.Vars(r)["command"])

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorf(w, http.StatusBadRequest, "read request body: %s", err)
		return
	}

	result, err := h.dispatchEndpoint(r.Context(), dispatchRequest{driver: d, command: command, params: body})
	if err != nil {
		writeDriverError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, map[string]any{"status": "ok"})
		return
	}
	writeJSON(w, result)
}

// handleMjpeg serves GET /api/{platform}/{serial}/mjpeg (iOS only): a
// multipart HTTP proxy by default, or a binary websocket feed when the
// client requests an Upgrade, both backed by internal/mjpeg.
func (h *Handler) handleMjpeg(w http.ResponseWriter, r *http.Request) {
	d, ok := h.resolveDriver(w, r)
	if !ok {
		return
	}

	if d.GetMjpegURL() == "" {
		started, err := d.StartMjpegStream(r.Context())
		if err != nil {
			writeDriverError(w, err)
			return
		}
		if !started {
			writeErrorf(w, http.StatusInternalServerError, "failed to start mjpeg stream")
			return
		}
	}
	url := d.GetMjpegURL()
	if url == "" {
		writeErrorf(w, http.StatusNotImplemented, "mjpeg not supported")
		return
	}

	_, err := h.streamEndpoint(r.Context(), streamRequest{w: w, r: r, url: url})
	if err != nil {
		writeDriverError(w, err)
	}
}

// handleUnsupportedStream answers a spec-named WS route whose underlying
// platform has no streaming driver implementation in this build: Android
// lacks a scrcpy backend and Harmony has no driver at all (see
// provider.ErrHarmonyDriverUnavailable). Matches device.py's "not
// implemented" 501/501-equivalent handling rather than silently dropping
// the connection.
func (h *Handler) handleUnsupportedStream(what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeErrorf(w, http.StatusNotImplemented, "%s streaming is not implemented", what)
	}
}

// handleGetIOSConfig serves GET /api/{platform}/{serial}/ios-config.
func (h *Handler) handleGetIOSConfig(w http.ResponseWriter, r *http.Request) {
	if h.configStore == nil {
		writeErrorf(w, http.StatusNotImplemented, "ios-config not available")
		return
	}
	serial := mux.Vars(r)["serial"]
	entry := h.configStore.Get(serial)
	writeJSON(w, map[string]any{"wda_bundle_id": entry.WDABundleID, "wda_port": entry.WDAPort})
}

type iosConfigRequest struct {
	WDABundleID string `json:"wda_bundle_id"`
	WDAPort     int    `json:"wda_port"`
}

// handleSetIOSConfig serves POST /api/{platform}/{serial}/ios-config.
func (h *Handler) handleSetIOSConfig(w http.ResponseWriter, r *http.Request) {
	if h.configStore == nil {
		writeErrorf(w, http.StatusNotImplemented, "ios-config not available")
		return
	}
	serial := mux.Vars(r)["serial"]

	var req iosConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorf(w, http.StatusBadRequest, "invalid request body: %s", err)
		return
	}
	if req.WDABundleID != "" {
		if err := h.configStore.SetWDABundleID(serial, req.WDABundleID); err != nil {
			writeErrorf(w, http.StatusInternalServerError, "save wda bundle id: %s", err)
			return
		}
	}
	if req.WDAPort != 0 {
		if err := h.configStore.SetWDAPort(serial, req.WDAPort); err != nil {
			writeErrorf(w, http.StatusInternalServerError, "save wda port: %s", err)
			return
		}
	}

	entry := h.configStore.Get(serial)
	writeJSON(w, map[string]any{"wda_bundle_id": entry.WDABundleID, "wda_port": entry.WDAPort})
}
