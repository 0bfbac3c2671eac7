// Package gate diverts ordinary visitors to the maintenance page while the
// system is under maintenance.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/metrics"
	"github.com/n3tuk/maintenance-gate/internal/model"
)

const (
	// MaintenancePath is the maintenance page.
	MaintenancePath = "/manutencao"

	// HomePath is where visitors go once maintenance ends.
	HomePath = "/"

	// MessageParam carries the maintenance message to the page.
	MessageParam = "mensagem"
)

// ExcludedPrefixes are never gated.
var ExcludedPrefixes = []string{"/admin", "/api"}

// Decision is the outcome of evaluating one request.
type Decision string

// Gate decisions, also used as metric labels.
const (
	DecisionBypass              Decision = "bypass"
	DecisionPass                Decision = "pass"
	DecisionAdmin               Decision = "admin"
	DecisionRedirectMaintenance Decision = "redirect_maintenance"
	DecisionRedirectHome        Decision = "redirect_home"
	DecisionRecovered           Decision = "recovered"
)

// StatusReader returns the current maintenance status without failing.
type StatusReader interface {
	Current(ctx context.Context) model.Status
}

// AdminVerifier reports whether a request comes from an active administrator.
type AdminVerifier interface {
	IsAuthenticatedAdmin(r *http.Request) bool
}

// Gate is the request interception middleware.
type Gate struct {
	status  StatusReader
	admins  AdminVerifier
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Gate. m may be nil.
func New(status StatusReader, admins AdminVerifier, logger *zap.Logger, m *metrics.Metrics) *Gate {
	return &Gate{
		status:  status,
		admins:  admins,
		logger:  logger,
		metrics: m,
	}
}

// Handler wraps next with the gate.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, location := g.Evaluate(r)

		g.logger.Debug("Gate decision",
			zap.String("path", r.URL.Path),
			zap.String("decision", string(decision)),
		)
		if g.metrics != nil {
			g.metrics.GateDecisionsTotal.WithLabelValues(string(decision)).Inc()
		}

		switch decision {
		case DecisionRedirectMaintenance, DecisionRedirectHome:
			http.Redirect(w, r, location, http.StatusTemporaryRedirect)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// Evaluate decides what to do with r. For redirects it also returns the
// target. A panic while evaluating lets the request through.
func (g *Gate) Evaluate(r *http.Request) (decision Decision, location string) {
	defer func() {
		if err := recover(); err != nil {
			g.logger.Error("Maintenance gate failed, letting request through",
				zap.String("path", r.URL.Path),
				zap.String("error", fmt.Sprint(err)),
			)
			decision, location = DecisionRecovered, ""
		}
	}()

	path := r.URL.Path
	if isExcluded(path) {
		return DecisionBypass, ""
	}

	current := g.status.Current(r.Context())
	onMaintenancePage := strings.HasPrefix(path, MaintenancePath)

	if !current.Active {
		if onMaintenancePage {
			return DecisionRedirectHome, HomePath
		}
		return DecisionPass, ""
	}

	if g.admins.IsAuthenticatedAdmin(r) {
		return DecisionAdmin, ""
	}

	if onMaintenancePage {
		return DecisionPass, ""
	}

	return DecisionRedirectMaintenance, MaintenanceURL(current.Message)
}

// MaintenanceURL builds the maintenance page address carrying message.
func MaintenanceURL(message string) string {
	q := url.Values{}
	q.Set(MessageParam, message)
	return MaintenancePath + "?" + q.Encode()
}

func isExcluded(path string) bool {
	for _, prefix := range ExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
