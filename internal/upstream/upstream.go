// Package upstream forwards requests that pass the gate to the protected
// application.
package upstream

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/middleware"
)

// New returns a reverse proxy to target, or fallback when target is empty.
func New(target string, fallback http.Handler, logger *zap.Logger) (http.Handler, error) {
	if target == "" {
		return fallback, nil
	}

	u, err := Parse(target)
	if err != nil {
		return nil, err
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(u)
			r.SetXForwarded()
			r.Out.Host = r.In.Host
			if id := middleware.GetCorrelationID(r.In.Context()); id != "" {
				r.Out.Header.Set(middleware.CorrelationIDHeader, id)
			}
		},
		FlushInterval: 100 * time.Millisecond,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("Upstream request failed",
				zap.String("upstream", u.Host),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
				zap.Error(err),
			)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}

	logger.Info("Proxying gated traffic", zap.String("upstream", u.String()))
	return proxy, nil
}

// Parse validates an upstream URL.
func Parse(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme must be http or https", target)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q: missing host", target)
	}
	return u, nil
}
