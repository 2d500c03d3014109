// Copyright (c) 2024 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package httpserver

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vechain/mesh-security/api/admin"
	"github.com/vechain/mesh-security/health"
)

func StartAdminServer(
	addr string,
	logLevel *slog.LevelVar,
	h *health.Health,
	apiLogs *atomic.Bool,
) (string, func(), error) {
	url, closeFunc, err := start("admin", addr, admin.New(logLevel, h, apiLogs))
	if err != nil {
		return "", nil, err
	}
	return url + "/admin", closeFunc, nil
}

// StartAPIServer serves the mesh api. The url ends with a slash.
func StartAPIServer(addr string, handler http.Handler) (string, func(), error) {
	url, closeFunc, err := start("API", addr, requestBodyLimit(handler))
	if err != nil {
		return "", nil, err
	}
	return url + "/", closeFunc, nil
}
