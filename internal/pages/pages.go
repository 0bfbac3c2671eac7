// Package pages renders the maintenance page, the control panel and the
// built-in home page.
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/auth"
	"github.com/n3tuk/maintenance-gate/internal/gate"
	"github.com/n3tuk/maintenance-gate/internal/model"
)

// Paths served by this package and referenced from the pages.
const (
	PanelPath       = "/admin/manutencao"
	AdminAPIPath    = "/api/admin/manutencao"
	PublicAPIPath   = "/api/sistema/status"
	CountdownPeriod = 30
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages renders the HTML pages.
type Pages struct {
	templates *template.Template
	logger    *zap.Logger
	title     string
}

// New parses the embedded templates. title names the protected application
// on the home page.
func New(logger *zap.Logger, title string) (*Pages, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}
	return &Pages{
		templates: tmpl,
		logger:    logger,
		title:     title,
	}, nil
}

type maintenanceData struct {
	Title      string
	Message    string
	Interval   int
	StatusPath string
	HomePath   string
	LoginPath  string
}

type panelData struct {
	Title           string
	AdminAPIPath    string
	Fallback        string
	Actor           string
	ConnectionError string
	LoadError       string
	ChangeError     string
}

type homeData struct {
	Title     string
	PanelPath string
}

// Maintenance serves GET /manutencao. The message comes from the mensagem
// query parameter.
func (p *Pages) Maintenance(w http.ResponseWriter, r *http.Request) {
	msg := model.MessageOrDefault(r.URL.Query().Get(gate.MessageParam), model.DefaultPageMessage)

	w.Header().Set("Cache-Control", "no-store")
	p.render(w, "maintenance", maintenanceData{
		Title:      "Sistema em manutenção",
		Message:    msg,
		Interval:   CountdownPeriod,
		StatusPath: PublicAPIPath,
		HomePath:   gate.HomePath,
		LoginPath:  auth.LoginPath,
	})
}

// Panel serves GET /admin/manutencao. Callers must guard it.
func (p *Pages) Panel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	p.render(w, "panel", panelData{
		Title:           "Modo de manutenção",
		AdminAPIPath:    AdminAPIPath,
		Fallback:        model.DefaultPageMessage,
		Actor:           model.ActorAdmin,
		ConnectionError: model.ErrConnection,
		LoadError:       model.ErrLoadStatus,
		ChangeError:     model.ErrChangeStatus,
	})
}

// Home serves the built-in home page used when no upstream is configured.
func (p *Pages) Home(w http.ResponseWriter, r *http.Request) {
	p.render(w, "home", homeData{
		Title:     p.title,
		PanelPath: PanelPath,
	})
}

// render executes into a buffer so template errors still produce a clean 500.
func (p *Pages) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		p.logger.Error("Failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
