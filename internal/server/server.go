// Package server implements the HTTP server that exposes the document
// assistant via a REST API and serves the web UI.
// The server is started by the `lightrag serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aTul-07kn/custom-lightRAG/internal/ingest"
	"github.com/aTul-07kn/custom-lightRAG/internal/knowledge"
	"github.com/aTul-07kn/custom-lightRAG/internal/logging"
	"github.com/aTul-07kn/custom-lightRAG/internal/query"
)

// maxUploadBytes caps a single multipart upload. Large PDFs are fine; this
// guards against unbounded request bodies.
const maxUploadBytes = 100 << 20 // 100 MiB

// New constructs a Server from the provided collaborators and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Runner == nil || deps.Engine == nil || deps.Ingestor == nil || deps.Query == nil {
		return nil, fmt.Errorf("server: runner, engine, ingestor, and query service are all required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.WorkspaceDir == "" {
		return nil, fmt.Errorf("server: workspace dir is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full indexing run of a large document.
		cfg.WriteTimeout = 15 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "ui/static"
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.APIKey == "" {
		log.Warn("server: LIGHTRAG_API_KEY not set — API authentication is disabled")
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.metrics.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/documents", protected("documents", s.handleDocuments))
	mux.Handle("POST /api/query", protected("query", s.handleQuery))
	mux.Handle("GET /api/workspace", protected("workspace", s.handleWorkspace))
	mux.Handle("POST /api/workspace/reset", protected("reset", s.handleReset))
	mux.Handle("GET /api/health", s.metrics.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.metrics.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler, for use in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleDocuments handles POST /api/documents. It accepts one or more files
// in a multipart form under the "file" field and indexes each in turn. A file
// that fails is reported in its result entry and does not stop the files
// after it.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	var resp documentsResponse
	for _, fh := range files {
		payload, err := readUpload(fh)
		if err == nil {
			var res *ingest.Result
			start := time.Now()
			res, err = s.deps.Ingestor.Ingest(r.Context(), fh.Filename, payload)
			if err == nil {
				s.metrics.documentsTotal.WithLabelValues("ok").Inc()
				s.metrics.ingestDurationSeconds.Observe(time.Since(start).Seconds())
				resp.Documents = append(resp.Documents, documentResult{
					FileName:  res.FileName,
					TextBytes: res.TextBytes,
					ElapsedMS: res.Elapsed.Milliseconds(),
				})
				continue
			}
		}

		s.metrics.documentsTotal.WithLabelValues("error").Inc()
		log.Error("documents: ingest failed",
			slog.String("file", fh.Filename),
			slog.Any("error", err),
		)
		resp.Documents = append(resp.Documents, documentResult{
			FileName: fh.Filename,
			Error:    err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// readUpload opens one multipart file header and reads its full payload.
func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	payload, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return payload, nil
}

// handleQuery handles POST /api/query. Mode "all" runs the question through
// every retrieval mode; any other value runs a single mode.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = string(knowledge.ModeHybrid)
	}

	resp := queryResponse{Query: req.Query}

	if req.Mode == "all" {
		answers, err := s.deps.Query.RunAll(r.Context(), req.Query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, ans := range answers {
			s.observeQuery(ans.Mode, ans.Err == "")
		}
		resp.Answers = answers
		writeJSON(w, http.StatusOK, resp)
		return
	}

	mode, err := knowledge.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ans, err := s.deps.Query.Run(r.Context(), req.Query, mode)
	if err != nil {
		s.observeQuery(mode, false)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.observeQuery(mode, true)
	resp.Answers = []query.Answer{*ans}
	writeJSON(w, http.StatusOK, resp)
}

// observeQuery updates the per-mode query metrics.
func (s *Server) observeQuery(mode knowledge.Mode, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	s.metrics.queriesTotal.WithLabelValues(string(mode), outcome).Inc()
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
