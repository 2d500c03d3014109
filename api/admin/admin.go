// Copyright (c) 2024 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin serves the operator endpoints of meshd.
package admin

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/api/utils"
	"github.com/vechain/mesh-security/health"
	"github.com/vechain/mesh-security/log"
)

var logger = log.WithContext("pkg", "admin")

type LogLevelRequest struct {
	Level string `json:"level"`
}

type LogLevelResponse struct {
	CurrentLevel string `json:"currentLevel"`
}

type LogStatus struct {
	Enabled bool `json:"enabled"`
}

var levels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
	"crit":  log.LevelCrit,
}

func getLogLevelHandler(logLevel *slog.LevelVar) utils.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		return utils.WriteJSON(w, LogLevelResponse{CurrentLevel: logLevel.Level().String()})
	}
}

func postLogLevelHandler(logLevel *slog.LevelVar) utils.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req LogLevelRequest
		if err := utils.ParseJSON(r.Body, &req); err != nil {
			return utils.BadRequest(errors.WithMessage(err, "Invalid request body"))
		}
		level, ok := levels[req.Level]
		if !ok {
			return utils.BadRequest(errors.New("Invalid verbosity level"))
		}
		logLevel.Set(level)
		logger.Info("log level updated", "level", level)

		return utils.WriteJSON(w, LogLevelResponse{CurrentLevel: logLevel.Level().String()})
	}
}

func getHealthHandler(h *health.Health) utils.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		status, err := h.Status()
		if err != nil {
			return err
		}
		if !status.Healthy {
			w.Header().Set("Content-Type", utils.JSONContentType)
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		return utils.WriteJSON(w, status)
	}
}

func getAPILogsHandler(enabled *atomic.Bool) utils.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		return utils.WriteJSON(w, LogStatus{Enabled: enabled.Load()})
	}
}

func postAPILogsHandler(enabled *atomic.Bool) utils.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req LogStatus
		if err := utils.ParseJSON(r.Body, &req); err != nil {
			return utils.BadRequest(err)
		}
		enabled.Store(req.Enabled)
		logger.Info("api logs updated", "enabled", req.Enabled)

		return utils.WriteJSON(w, LogStatus{Enabled: enabled.Load()})
	}
}

// New returns the admin handler. apiLogs switches the request logger of the
// public api.
func New(logLevel *slog.LevelVar, h *health.Health, apiLogs *atomic.Bool) http.HandlerFunc {
	router := mux.NewRouter()
	sub := router.PathPrefix("/admin").Subrouter()

	sub.Path("/loglevel").
		Methods(http.MethodGet).
		Name("get-log-level").
		HandlerFunc(utils.WrapHandlerFunc(getLogLevelHandler(logLevel)))
	sub.Path("/loglevel").
		Methods(http.MethodPost).
		Name("post-log-level").
		HandlerFunc(utils.WrapHandlerFunc(postLogLevelHandler(logLevel)))
	sub.Path("/health").
		Methods(http.MethodGet).
		Name("get-health").
		HandlerFunc(utils.WrapHandlerFunc(getHealthHandler(h)))
	sub.Path("/apilogs").
		Methods(http.MethodGet).
		Name("get-api-logs-enabled").
		HandlerFunc(utils.WrapHandlerFunc(getAPILogsHandler(apiLogs)))
	sub.Path("/apilogs").
		Methods(http.MethodPost).
		Name("post-api-logs-enabled").
		HandlerFunc(utils.WrapHandlerFunc(postAPILogsHandler(apiLogs)))

	handler := handlers.CompressHandler(router)

	return handler.ServeHTTP
}
