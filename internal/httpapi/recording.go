// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

type saveRecordingRequest struct {
	Group string          `json:"group"`
	Name  string          `json:"name"`
	Data  json.RawMessage `json:"data"`
}

// handleSaveRecording serves POST /recordings/save, matching
// save_recording's {success, path, message} response shape.
func (h *Handler) handleSaveRecording(w http.ResponseWriter, r *http.Request) {
	if h.recordings == nil {
		writeErrorf(w, http.StatusNotImplemented, "recordings not available")
		return
	}

	var req saveRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorf(w, http.StatusBadRequest, "invalid request body: %s", err)
		return
	}

	id, path, err := h.recordings.Save(req.Group, req.Name, req.Data)
	if err != nil {
		writeRecordingError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "id": id, "path": path, "message": "recording saved to " + path})
}

// handleListRecordings serves GET /recordings/list.
func (h *Handler) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	if h.recordings == nil {
		writeErrorf(w, http.StatusNotImplemented, "recordings not available")
		return
	}

	list, err := h.recordings.List()
	if err != nil {
		writeRecordingError(w, err)
		return
	}
	writeJSON(w, map[string]any{"recordings": list})
}

// handleLoadRecording serves GET /recordings/load?group=...&name=....
func (h *Handler) handleLoadRecording(w http.ResponseWriter, r *http.Request) {
	if h.recordings == nil {
		writeErrorf(w, http.StatusNotImplemented, "recordings not available")
		return
	}

	group := r.URL.Query().Get("group")
	name := r.URL.Query().Get("name")

	data, err := h.recordings.Load(group, name)
	if err != nil {
		writeRecordingError(w, err)
		return
	}
	writeJSON(w, map[string]any{"data": json.RawMessage(data)})
}

// handleDeleteRecording serves DELETE /recordings/delete?group=...&name=....
func (h *Handler) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if h.recordings == nil {
		writeErrorf(w, http.StatusNotImplemented, "recordings not available")
		return
	}

	group := r.URL.Query().Get("group")
	name := r.URL.Query().Get("name")

	if err := h.recordings.Delete(group, name); err != nil {
		writeRecordingError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "recording " + name + " deleted from " + group})
}

// writeRecordingError maps recording.Store error text to a status code:
// "not found" errors are 404s, path-traversal validation errors are 400s,
// everything else (filesystem failures) is a 500 — mirroring
// recording.py's HTTPException status choices.
func writeRecordingError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		writeErrorf(w, http.StatusNotFound, "%s", msg)
	case strings.Contains(msg, "path traversal") || strings.Contains(msg, "invalid recording data"):
		writeErrorf(w, http.StatusBadRequest, "%s", msg)
	default:
		writeErrorf(w, http.StatusInternalServerError, "%s", msg)
	}
}
