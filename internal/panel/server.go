package panel

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rendis/conclave/internal/engine"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

//go:embed templates static
var content embed.FS

// Controller is the slice of the sequencer the panel drives.
type Controller interface {
	engine.Runner
	Query(ctx context.Context, query string) (any, error)
	Script() *schema.Script
}

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	Runner         Controller
	Hub            streaming.EventHub
	Logger         *slog.Logger
	AllowedOrigins []string
}

// PanelServer serves the browser demo: one page plus a JSON API and two
// change streams.
type PanelServer struct {
	deps PanelDeps
	page *template.Template
}

// NewPanelServer creates a new PanelServer with parsed templates.
func NewPanelServer(deps PanelDeps) *PanelServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	funcMap := template.FuncMap{
		"stepClass":  stepClass,
		"agentLabel": agentLabel,
		"add":        add,
		"clock":      clock,
	}

	page := template.Must(
		template.New("").Funcs(funcMap).ParseFS(content,
			"templates/base.html",
			"templates/partials/*.html",
			"templates/index.html",
		),
	)

	return &PanelServer{deps: deps, page: page}
}

// Handler returns the HTTP handler for the panel routes.
func (s *PanelServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(cors(s.deps.AllowedOrigins))

	staticFS, _ := fs.Sub(content, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Post("/decision", s.handleChoose)
		r.Get("/state", s.handleState)
		r.Get("/script", s.handleScript)
	})

	r.Get("/sse", s.handleSSE)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// renderPage executes the page template.
func (s *PanelServer) renderPage(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.ExecuteTemplate(w, "base", data); err != nil {
		s.deps.Logger.Error("template render error", "error", err)
		http.Error(w, fmt.Sprintf("render: %v", err), http.StatusInternalServerError)
	}
}
