// Package auth decides whether a request comes from an active administrator.
package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/metrics"
	"github.com/n3tuk/maintenance-gate/internal/model"
)

const (
	// SessionCookie names the cookie holding the administrator id.
	SessionCookie = "admin-session"

	// LoginPath is where unauthenticated panel visitors are sent.
	LoginPath = "/admin/login"

	// ErrUnauthorized is the error text returned to non-admin API callers.
	ErrUnauthorized = "Acesso não autorizado"
)

// AdminLookup reports whether an id belongs to an active administrator.
type AdminLookup interface {
	IsActiveAdmin(ctx context.Context, id string) (bool, error)
}

// AdminChecker resolves the session cookie against the administrators table.
// Any failure to resolve it counts as "not an administrator".
type AdminChecker struct {
	lookup  AdminLookup
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAdminChecker creates an AdminChecker. m may be nil.
func NewAdminChecker(lookup AdminLookup, logger *zap.Logger, m *metrics.Metrics) *AdminChecker {
	return &AdminChecker{
		lookup:  lookup,
		logger:  logger,
		metrics: m,
	}
}

// SessionID returns the raw admin-session cookie value, or "" if absent.
func SessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// IsAuthenticatedAdmin reports whether r carries the session of an active
// administrator. A missing cookie never reaches the store.
func (a *AdminChecker) IsAuthenticatedAdmin(r *http.Request) bool {
	id := SessionID(r)
	if id == "" {
		a.observe(metrics.AdminDenied)
		return false
	}

	ok, err := a.lookup.IsActiveAdmin(r.Context(), id)
	if err != nil {
		a.logger.Error("Failed to verify administrator session", zap.Error(err))
		a.observe(metrics.AdminError)
		return false
	}

	if !ok {
		a.observe(metrics.AdminDenied)
		return false
	}

	a.observe(metrics.AdminGranted)
	return true
}

func (a *AdminChecker) observe(result string) {
	if a.metrics != nil {
		a.metrics.AdminChecksTotal.WithLabelValues(result).Inc()
	}
}

// RequireAdmin rejects non-admin API callers with 401 and a JSON envelope.
func (a *AdminChecker) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.IsAuthenticatedAdmin(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(model.WriteResponse{
				Success: false,
				Error:   ErrUnauthorized,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminPage redirects non-admin page visitors to the login page.
func (a *AdminChecker) RequireAdminPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.IsAuthenticatedAdmin(r) {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
