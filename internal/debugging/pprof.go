// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package debugging exposes net/http/pprof for long imports.
package debugging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"
)

// PprofPortEnv names the variable that enables the pprof listener.
const PprofPortEnv = "TRIPLOAD_PPROF_PORT"

// RunPprof serves pprof on the port from TRIPLOAD_PPROF_PORT until ctx
// is done. It does nothing when the variable is unset or off. The
// returned address is empty when no server was started.
func RunPprof(ctx context.Context) string {
	port := PprofPort()
	if port <= 0 {
		return ""
	}

	addr := fmt.Sprintf("localhost:%d", port)
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting pprof server", slog.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Pprof server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down pprof server", slog.Any("error", err))
		}
	}()
	return addr
}

// PprofPort parses TRIPLOAD_PPROF_PORT. Unset, "0", "false" and "off"
// disable the server.
func PprofPort() int {
	envPort := strings.TrimSpace(os.Getenv(PprofPortEnv))
	switch strings.ToLower(envPort) {
	case "", "0", "false", "off":
		return 0
	}

	port, err := strconv.Atoi(envPort)
	if err != nil || port < 0 || port > 65535 {
		slog.Warn("Invalid pprof port, pprof disabled", slog.String("value", envPort))
		return 0
	}
	return port
}
