package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/n3tuk/maintenance-gate/internal/auth"
	"github.com/n3tuk/maintenance-gate/internal/model"
)

// fakeServer mimics the admin endpoints over an in-memory status.
type fakeServer struct {
	mu       sync.Mutex
	status   model.AdminStatus
	posts    []model.StatusUpdate
	cookies  []string
	failLoad bool
	failPost string
	postCode int
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/manutencao", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if c, err := r.Cookie(auth.SessionCookie); err == nil {
			f.cookies = append(f.cookies, c.Value)
		}
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodGet:
			if f.failLoad {
				_ = json.NewEncoder(w).Encode(model.StatusResponse{Success: false, Error: "boom"})
				return
			}
			_ = json.NewEncoder(w).Encode(model.StatusResponse{Success: true, Data: f.status})
		case http.MethodPost:
			var u model.StatusUpdate
			_ = json.NewDecoder(r.Body).Decode(&u)
			f.posts = append(f.posts, u)
			if f.postCode != 0 {
				w.WriteHeader(f.postCode)
				_ = json.NewEncoder(w).Encode(model.WriteResponse{Success: false, Error: f.failPost})
				return
			}
			f.status = model.AdminStatus{Active: u.Active, Message: u.Message}
			msg := "Modo de manutenção desativado com sucesso"
			if u.Active {
				msg = "Modo de manutenção ativado com sucesso"
			}
			_ = json.NewEncoder(w).Encode(model.WriteResponse{Success: true, Message: msg})
		}
	})
	mux.HandleFunc("/api/admin/manutencao/cache", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.StatusResponse{Success: true, Data: model.Status{Active: true, Message: "fresh"}})
	})
	mux.HandleFunc("/api/sistema/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.StatusResponse{Success: true, Data: model.Status{Active: false, Message: model.DefaultMessage}})
	})
	return mux
}

func newTestPanel(t *testing.T, f *fakeServer) (*Panel, *HTTPClient) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	client := NewHTTPClient(srv.URL+"/", "a1", 5*time.Second)
	return New(client), client
}

func TestPanel_Load(t *testing.T) {
	f := &fakeServer{status: model.AdminStatus{Active: false, Message: "Janela de sábado"}}
	p, _ := newTestPanel(t, f)

	if p.CanActivate() || p.CanDeactivate() {
		t.Errorf("before Load(): CanActivate() = %v, CanDeactivate() = %v; want false, false", p.CanActivate(), p.CanDeactivate())
	}

	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Status == nil || p.Status.Active {
		t.Fatalf("Status = %+v, want inactive", p.Status)
	}
	if p.Draft != "Janela de sábado" {
		t.Errorf("Draft = %q, want loaded message", p.Draft)
	}
	if !p.CanActivate() || p.CanDeactivate() {
		t.Errorf("CanActivate() = %v, CanDeactivate() = %v; want true, false", p.CanActivate(), p.CanDeactivate())
	}
	if len(f.cookies) != 1 || f.cookies[0] != "a1" {
		t.Errorf("session cookies = %v, want [a1]", f.cookies)
	}
}

func TestPanel_LoadFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		p, _ := newTestPanel(t, &fakeServer{failLoad: true})

		if err := p.Load(context.Background()); err == nil {
			t.Fatal("Load() error = nil")
		}
		if p.Error != model.ErrLoadStatus {
			t.Errorf("Error = %q, want %q", p.Error, model.ErrLoadStatus)
		}
	})

	t.Run("connection error", func(t *testing.T) {
		p := New(NewHTTPClient("http://127.0.0.1:1", "", 200*time.Millisecond))

		if err := p.Load(context.Background()); err == nil {
			t.Fatal("Load() error = nil")
		}
		if p.Error != model.ErrConnection {
			t.Errorf("Error = %q, want %q", p.Error, model.ErrConnection)
		}
		if p.CanActivate() || p.CanDeactivate() {
			t.Error("controls enabled without a loaded status")
		}
	})
}

func TestPanel_ActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	f := &fakeServer{}
	p, _ := newTestPanel(t, f)

	if err := p.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := p.Activate(ctx, ""); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if got := f.posts[0]; !got.Active || got.Message != model.DefaultPageMessage || got.CreatedBy != model.ActorAdmin {
		t.Errorf("posted %+v, want active fallback ADMIN", got)
	}
	if p.Success != "Modo de manutenção ativado com sucesso" || p.Error != "" {
		t.Errorf("Success = %q, Error = %q", p.Success, p.Error)
	}
	if !p.Status.Active || !p.CanDeactivate() || p.CanActivate() {
		t.Errorf("after Activate(): status %+v, CanActivate %v, CanDeactivate %v", p.Status, p.CanActivate(), p.CanDeactivate())
	}
	if p.Draft != model.DefaultPageMessage {
		t.Errorf("Draft after reload = %q", p.Draft)
	}

	p.Draft = "Voltamos já"
	if err := p.Deactivate(ctx); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if got := f.posts[1]; got.Active || got.Message != "Voltamos já" {
		t.Errorf("posted %+v, want inactive with draft", got)
	}
	if p.Loading {
		t.Error("Loading still set after Deactivate()")
	}
}

func TestPanel_ChangeFailures(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		serverErr string
		want      string
	}{
		{"server message", http.StatusUnauthorized, "Acesso não autorizado", "Acesso não autorizado"},
		{"no server message", http.StatusInternalServerError, "", model.ErrChangeStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeServer{postCode: tt.code, failPost: tt.serverErr}
			p, _ := newTestPanel(t, f)

			if err := p.Activate(context.Background(), "M"); err == nil {
				t.Fatal("Activate() error = nil")
			}
			if p.Error != tt.want {
				t.Errorf("Error = %q, want %q", p.Error, tt.want)
			}
			if p.Success != "" {
				t.Errorf("Success = %q, want empty", p.Success)
			}
		})
	}

	t.Run("connection error", func(t *testing.T) {
		p := New(NewHTTPClient("http://127.0.0.1:1", "a1", 200*time.Millisecond))

		if err := p.Activate(context.Background(), "M"); err == nil {
			t.Fatal("Activate() error = nil")
		}
		if p.Error != model.ErrConnection {
			t.Errorf("Error = %q, want %q", p.Error, model.ErrConnection)
		}
	})
}

func TestPanel_Preview(t *testing.T) {
	p := New(nil)

	if got := p.Preview(); got != model.DefaultPageMessage {
		t.Errorf("Preview() = %q, want fallback", got)
	}

	p.Draft = "Atualização do banco"
	if got := p.Preview(); got != "Atualização do banco" {
		t.Errorf("Preview() = %q, want draft", got)
	}
}

func TestHTTPClient_StatusEndpoints(t *testing.T) {
	_, client := newTestPanel(t, &fakeServer{})
	ctx := context.Background()

	fresh, err := client.RefreshCache(ctx)
	if err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if !fresh.Active || fresh.Message != "fresh" {
		t.Errorf("RefreshCache() = %+v", fresh)
	}

	public, err := client.PublicStatus(ctx)
	if err != nil {
		t.Fatalf("PublicStatus() error = %v", err)
	}
	if public.Active {
		t.Errorf("PublicStatus() = %+v, want inactive", public)
	}
}
