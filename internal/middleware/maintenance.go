// AngelaMos | 2026
// maintenance.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/careerpilot/ledger-service/internal/core"
)

// Maintenance returns 503 to non-admin traffic while the maintenance flag
// is set. The flag lookup is a closure over the settings cache; it must be
// mounted after the authenticator so the caller's role is in context.
// Lookup failures fail open: a settings outage must not take the API down.
func Maintenance(
	enabled func(ctx context.Context) (bool, error),
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			on, err := enabled(r.Context())
			if err != nil {
				slog.Error("maintenance flag lookup failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if on && !IsAdmin(r.Context()) {
				core.JSONError(w, core.MaintenanceError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
