// Package dashboard serves the stored analysis results: an HTML ranking,
// a page per product and a small read-only JSON API.
package dashboard

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/japaniel/wifireview/pkg/db"
	"github.com/japaniel/wifireview/pkg/export"
)

//go:embed templates/*.html
var templateFS embed.FS

var json = jsoniter.Config{EscapeHTML: false, SortMapKeys: true}.Froze()

// Server is an http.Handler over a results store.
type Server struct {
	store  db.DBExecutor
	mux    *http.ServeMux
	tmpl   *template.Template
	Logger *slog.Logger
}

// NewServer parses the page templates and registers the routes.
func NewServer(store db.DBExecutor) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"score": export.FormatScore,
		"price": formatPrice,
		"inc":   func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{store: store, mux: http.NewServeMux(), tmpl: tmpl}
	s.registerRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /products/{id}", s.handleProductPage)
	s.mux.HandleFunc("GET /api/v1/products", s.handleListProducts)
	s.mux.HandleFunc("GET /api/v1/products/{id}", s.handleGetProduct)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type indexPage struct {
	Sort     SortOption
	Options  []SortOption
	Products []db.ProductOverview
	Columns  []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	products, err := db.ListProducts(r.Context(), s.store)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	opts := SortOptions(products)
	sortOpt := ResolveSort(r.URL.Query().Get("sort_by"), opts)
	SortProducts(products, sortOpt)

	page := indexPage{Sort: sortOpt, Options: opts, Products: products}
	if len(products) > 0 {
		for _, c := range products[0].Scores {
			page.Columns = append(page.Columns, c.Name)
		}
	}
	s.render(w, "index.html", page)
}

type productPage struct {
	db.ProductDetail
	Summary template.HTML
}

func (s *Server) handleProductPage(w http.ResponseWriter, r *http.Request) {
	d, ok := s.loadDetail(w, r, false)
	if !ok {
		return
	}
	s.render(w, "product.html", productPage{ProductDetail: d, Summary: RenderSummary(d.Report)})
}

type listResponse struct {
	SortBy   string               `json:"sort_by"`
	Products []db.ProductOverview `json:"products"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := db.ListProducts(r.Context(), s.store)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	sortOpt := ResolveSort(r.URL.Query().Get("sort_by"), SortOptions(products))
	SortProducts(products, sortOpt)
	if products == nil {
		products = []db.ProductOverview{}
	}
	writeJSON(w, http.StatusOK, listResponse{SortBy: sortOpt.Key, Products: products})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	d, ok := s.loadDetail(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// loadDetail writes the error response itself and reports false when the
// product could not be loaded.
func (s *Server) loadDetail(w http.ResponseWriter, r *http.Request, asJSON bool) (db.ProductDetail, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	d, err := db.GetProductDetail(r.Context(), s.store, id)
	if errors.Is(err, db.ErrNotFound) {
		if asJSON {
			writeError(w, http.StatusNotFound, fmt.Errorf("product %s not found", id))
		} else {
			http.NotFound(w, r)
		}
		return d, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return d, false
	}
	return d, true
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf strings.Builder
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger().Error("render page failed", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger().Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	type resp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, resp{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return "¥" + strconv.FormatFloat(*p, 'f', -1, 64)
}
