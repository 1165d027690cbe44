package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantline/greenwash-cli/internal/analysis"
	"github.com/verdantline/greenwash-cli/internal/demo"
	"github.com/verdantline/greenwash-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		router := newRouter(env, cfg.Server.DemoMode)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(env *appEnv, demoMode bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/analyze/{company}", func(w http.ResponseWriter, req *http.Request) {
		company := chi.URLParam(req, "company")

		result, err := env.Analyzer.Analyze(req.Context(), company)
		if err != nil {
			if eris.Is(err, analysis.ErrNoDocuments) {
				if demoMode {
					if canned, ok := demo.Analysis(company); ok {
						writeJSON(w, http.StatusOK, canned)
						return
					}
				}
				writeError(w, http.StatusNotFound,
					fmt.Sprintf("No ESG documents found for '%s'. Ingest data first.", company))
				return
			}
			zap.L().Error("analysis failed",
				zap.String("company", company),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/discover", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Company    string `json:"company"`
			Sector     string `json:"sector"`
			MaxResults int    `json:"max_results"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Company == "" {
			writeError(w, http.StatusBadRequest, "company is required")
			return
		}

		if demoMode && storeIsEmptyFor(req.Context(), env, body.Company) {
			if report, ok := demo.Discovery(body.Company, body.MaxResults); ok {
				writeJSON(w, http.StatusOK, report)
				return
			}
		}

		report := env.Pipeline.Run(req.Context(), body.Company, body.Sector, body.MaxResults)
		writeJSON(w, http.StatusOK, report)
	})

	r.Post("/documents", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Company   string `json:"company"`
			Sector    string `json:"sector"`
			DocType   string `json:"doc_type"`
			Content   string `json:"content"`
			SourceURL string `json:"source_url"`
			Title     string `json:"title"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Company == "" || body.Content == "" {
			writeError(w, http.StatusBadRequest, "company and content are required")
			return
		}

		doc := &model.StoredDocument{
			Company:         body.Company,
			Sector:          body.Sector,
			DocType:         model.NormalizeDocType(body.DocType),
			Content:         body.Content,
			SourceURL:       body.SourceURL,
			SourceTitle:     body.Title,
			RetrievalMethod: model.RetrievalManualUpload,
		}
		inserted, err := env.Gateway.Ingest(req.Context(), doc)
		if err != nil {
			zap.L().Error("document ingest failed",
				zap.String("company", body.Company),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "ingest failed")
			return
		}

		status := http.StatusCreated
		if !inserted {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{
			"inserted": inserted,
			"id":       doc.ID,
		})
	})

	return r
}

// storeIsEmptyFor reports whether the store holds no documents for the
// company. Demo payloads are served only in that case, so canned data never
// shadows real rows.
func storeIsEmptyFor(ctx context.Context, env *appEnv, company string) bool {
	docs, err := env.Store.OwnDocuments(ctx, company, 1)
	return err == nil && len(docs) == 0
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
