package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestCorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated when missing"},
		{name: "propagated when present", incoming: "req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetCorrelationID(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(CorrelationIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()

			CorrelationID(handler).ServeHTTP(rr, req)

			if seen == "" {
				t.Fatal("correlation ID missing from context")
			}
			if got := rr.Header().Get(CorrelationIDHeader); got != seen {
				t.Errorf("response header = %q, want %q", got, seen)
			}

			if tt.incoming != "" {
				if seen != tt.incoming {
					t.Errorf("correlation ID = %q, want %q", seen, tt.incoming)
				}
				return
			}
			if _, err := uuid.Parse(seen); err != nil {
				t.Errorf("generated correlation ID %q is not a UUID: %v", seen, err)
			}
		})
	}
}

func TestGetCorrelationID_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetCorrelationID(req.Context()); got != "" {
		t.Errorf("GetCorrelationID() = %q, want empty", got)
	}
}
