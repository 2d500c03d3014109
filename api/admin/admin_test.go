// Copyright (c) 2024 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/mesh-security/health"
)

type testCase struct {
	name             string
	method           string
	body             any
	expectedStatus   int
	expectedLevel    string
	expectedErrorMsg string
}

func TestLogLevelHandler(t *testing.T) {
	tests := []testCase{
		{
			name:           "Valid POST input - set level to DEBUG",
			method:         http.MethodPost,
			body:           map[string]string{"level": "debug"},
			expectedStatus: http.StatusOK,
			expectedLevel:  "DEBUG",
		},
		{
			name:             "Invalid POST input - invalid level",
			method:           http.MethodPost,
			body:             map[string]string{"level": "invalid_body"},
			expectedStatus:   http.StatusBadRequest,
			expectedErrorMsg: "Invalid verbosity level",
		},
		{
			name:           "GET request - get current level INFO",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectedLevel:  "INFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logLevel slog.LevelVar
			logLevel.Set(slog.LevelInfo)

			var body []byte
			if tt.body != nil {
				var err error
				body, err = json.Marshal(tt.body)
				require.NoError(t, err)
			}
			req := httptest.NewRequest(tt.method, "/admin/loglevel", bytes.NewReader(body))
			rr := httptest.NewRecorder()
			New(&logLevel, health.New(time.Second), &atomic.Bool{})(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedLevel != "" {
				var res LogLevelResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
				assert.Equal(t, tt.expectedLevel, res.CurrentLevel)
			} else {
				assert.Equal(t, tt.expectedErrorMsg, strings.Trim(rr.Body.String(), "\n"))
			}
		})
	}
}

func TestAPILogsHandler(t *testing.T) {
	var enabled atomic.Bool
	handler := New(&slog.LevelVar{}, health.New(time.Second), &enabled)

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodPost, "/admin/apilogs", strings.NewReader(`{"enabled":true}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, enabled.Load())

	rr = httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/admin/apilogs", nil))
	var status LogStatus
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.True(t, status.Enabled)

	rr = httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodPost, "/admin/apilogs", strings.NewReader(`{"enabled":"yes"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, enabled.Load())
}

func TestHealthHandler(t *testing.T) {
	h := health.New(time.Second)
	handler := New(&slog.LevelVar{}, h, &atomic.Bool{})

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/admin/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	h.Tick(1, 0, 0)
	rr = httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/admin/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var status health.Status
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.Relaying.Delivered)
}
