// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uiautodev/uiautodev/internal/recording"
)

func newRecordingTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := recording.Open(t.TempDir())
	require.NoError(t, err)
	return New(Deps{Logger: zaptest.NewLogger(t), Recordings: store})
}

func TestRecordingsSaveListLoadDeleteRoundTrip(t *testing.T) {
	h := newRecordingTestHandler(t)

	saveBody := `{"group":"login","name":"happy-path","data":{"steps":[1,2,3]}}`
	saveReq := httptest.NewRequest(http.MethodPost, "/recordings/save", strings.NewReader(saveBody))
	saveRec := httptest.NewRecorder()
	h.ServeHTTP(saveRec, saveReq)
	require.Equal(t, http.StatusOK, saveRec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/recordings/list", nil)
	listRec := httptest.NewRecorder()
	h.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)
	var listOut struct {
		Recordings []recording.Metadata `json:"recordings"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listOut))
	require.Len(t, listOut.Recordings, 1)

	loadReq := httptest.NewRequest(http.MethodGet, "/recordings/load?group=login&name=happy-path", nil)
	loadRec := httptest.NewRecorder()
	h.ServeHTTP(loadRec, loadReq)
	require.Equal(t, http.StatusOK, loadRec.Code)
	var loadOut struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(loadRec.Body.Bytes(), &loadOut))
	require.JSONEq(t, `{"steps":[1,2,3]}`, string(loadOut.Data))

	delReq := httptest.NewRequest(http.MethodDelete, "/recordings/delete?group=login&name=happy-path", nil)
	delRec := httptest.NewRecorder()
	h.ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	loadAgainReq := httptest.NewRequest(http.MethodGet, "/recordings/load?group=login&name=happy-path", nil)
	loadAgainRec := httptest.NewRecorder()
	h.ServeHTTP(loadAgainRec, loadAgainReq)
	require.Equal(t, http.StatusNotFound, loadAgainRec.Code)
}

func TestRecordingsUnavailableReturns501(t *testing.T) {
	h := New(Deps{Logger: zaptest.NewLogger(t)})
	req := httptest.NewRequest(http.MethodGet, "/recordings/list", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestIOSConfigUnavailableReturns501(t *testing.T) {
	h := New(Deps{Logger: zaptest.NewLogger(t)})
	req := httptest.NewRequest(http.MethodGet, "/api/ios/fake-serial/ios-config", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
