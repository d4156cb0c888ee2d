package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/artifact"
	"github.com/causalml-fall25/project-cbsobral/internal/config"
	"github.com/causalml-fall25/project-cbsobral/internal/geo"
	"github.com/causalml-fall25/project-cbsobral/internal/model"
	"github.com/causalml-fall25/project-cbsobral/internal/projection"
	"github.com/causalml-fall25/project-cbsobral/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve persisted grids and panels over HTTP (read-only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate(config.SectionServer); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pr, err := projection.New(projection.Geographic, cfg.Study.Projection)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(st, pr, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// api serves read-only views of persisted runs.
type api struct {
	store store.Store
	proj  *projection.Projector
}

// newRouter builds the HTTP handler for the serve command.
func newRouter(st store.Store, pr *projection.Projector, origins []string) http.Handler {
	a := &api{store: st, proj: pr}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", a.listRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", a.getRun)
			r.Get("/grid", a.getGrid)
			r.Get("/panel", a.getPanel)
			r.Get("/bpolys", a.getBPolys)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *api) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := a.store.ListRuns(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// runDetail is a run with its grid composition and panel extent.
type runDetail struct {
	Run       model.Run   `json:"run"`
	Cells     int         `json:"cells"`
	Grid      geo.Summary `json:"grid"`
	PanelRows int         `json:"panel_rows"`
	MinPeriod *int        `json:"min_period,omitempty"`
	MaxPeriod *int        `json:"max_period,omitempty"`
}

func loadRunDetail(ctx context.Context, st store.Store, runID string) (*runDetail, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	cells, err := st.LoadGrid(ctx, runID)
	if err != nil && !eris.Is(err, store.ErrNotFound) {
		return nil, err
	}
	rows, err := st.LoadPanel(ctx, runID)
	if err != nil && !eris.Is(err, store.ErrNotFound) {
		return nil, err
	}

	d := &runDetail{Run: *run, Cells: len(cells), Grid: geo.Summarize(cells), PanelRows: len(rows)}
	for i := range rows {
		p := rows[i].Period
		if d.MinPeriod == nil || p < *d.MinPeriod {
			d.MinPeriod = &rows[i].Period
		}
		if d.MaxPeriod == nil || p > *d.MaxPeriod {
			d.MaxPeriod = &rows[i].Period
		}
	}
	return d, nil
}

func (a *api) getRun(w http.ResponseWriter, r *http.Request) {
	d, err := loadRunDetail(r.Context(), a.store, chi.URLParam(r, "runID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// getGrid returns the grid as GeoJSON, in lon/lat unless crs=grid.
func (a *api) getGrid(w http.ResponseWriter, r *http.Request) {
	cells, err := a.store.LoadGrid(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	switch r.URL.Query().Get("crs") {
	case "", "lonlat":
		if cells, err = a.proj.InverseCells(cells); err != nil {
			a.fail(w, err)
			return
		}
	case "grid":
	default:
		writeError(w, http.StatusBadRequest, "crs must be lonlat or grid")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := artifact.WriteGrid(w, cells); err != nil {
		zap.L().Warn("write grid response", zap.Error(err))
	}
}

// getPanel returns the panel as CSV, or JSON with format=json.
func (a *api) getPanel(w http.ResponseWriter, r *http.Request) {
	rows, err := a.store.LoadPanel(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, rows)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := artifact.WritePanel(w, rows); err != nil {
		zap.L().Warn("write panel response", zap.Error(err))
	}
}

func (a *api) getBPolys(w http.ResponseWriter, r *http.Request) {
	cells, err := a.store.LoadGrid(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := writeBPolys(w, a.proj, cells); err != nil {
		zap.L().Warn("write bpolys response", zap.Error(err))
	}
}

func (a *api) fail(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
