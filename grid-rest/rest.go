// Package gridrest assembles the HTTP surface: liveness checks, the
// websocket route, the row-range query, CSV export, and metrics exposition,
// with CORS support for the browser grid.
package gridrest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	griddata "github.com/gridlive/gridlive/grid-data"
)

// MaxRowLimit caps a single row-range query.
const MaxRowLimit = 1000

// RowSource provides read access to the persisted grid rows.
type RowSource interface {
	FetchRows(ctx context.Context, start, limit int) ([]map[string]interface{}, error)
}

// API wires the HTTP routes. WS handles the websocket upgrade; Metrics, when
// set, serves the exposition endpoint.
type API struct {
	Rows    RowSource
	WS      http.Handler
	Metrics http.Handler // optional
	Logger  zerolog.Logger
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		withCORS(),
		withLogger(a.Logger),
		middleware.Recoverer,
	)

	r.Get("/", a.healthcheck)
	r.Get("/health", a.healthcheck)
	r.Get("/ws", a.WS.ServeHTTP)
	r.Get("/api/rows", a.listRows)
	r.Get("/api/export.csv", a.exportCSV)
	if a.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.Metrics)
	}
	return r
}

func (a *API) healthcheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (a *API) listRows(w http.ResponseWriter, req *http.Request) {
	start := queryInt(req, "start", 0)
	limit := queryInt(req, "limit", 100)
	if limit > MaxRowLimit {
		limit = MaxRowLimit
	}
	if start < 0 || limit <= 0 {
		http.Error(w, "invalid range", http.StatusBadRequest)
		return
	}

	rows, err := a.Rows.FetchRows(req.Context(), start, limit)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("row query failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to encode rows")
	}
}

// exportCSV streams the current rows as CSV in catalog column order. A
// stateless transform of the store's contents.
func (a *API) exportCSV(w http.ResponseWriter, req *http.Request) {
	columns := append([]string{"rowId", "name", "region"}, griddata.UpdateableColumns()...)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="grid-export.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		a.Logger.Warn().Err(err).Msg("csv export aborted")
		return
	}

	for start := 0; ; start += MaxRowLimit {
		rows, err := a.Rows.FetchRows(req.Context(), start, MaxRowLimit)
		if err != nil {
			// Headers are gone; all we can do is stop the stream.
			a.Logger.Warn().Err(err).Msg("csv export aborted")
			return
		}
		for _, row := range rows {
			record := make([]string, len(columns))
			for i, col := range columns {
				if v, ok := row[col]; ok && v != nil {
					record[i] = fmt.Sprint(v)
				}
			}
			if err := cw.Write(record); err != nil {
				a.Logger.Warn().Err(err).Msg("csv export aborted")
				return
			}
		}
		if len(rows) < MaxRowLimit {
			break
		}
	}
	cw.Flush()
}

func queryInt(req *http.Request, key string, fallback int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			handler.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
