package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aTul-07kn/custom-lightRAG/internal/bridge"
	"github.com/aTul-07kn/custom-lightRAG/internal/ingest"
	"github.com/aTul-07kn/custom-lightRAG/internal/knowledge"
	"github.com/aTul-07kn/custom-lightRAG/internal/query"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for a full indexing run.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil, a fresh
	// registry with the standard process/Go collectors is created.
	Registry *prometheus.Registry
	// WorkspaceDir is the knowledge store directory.
	WorkspaceDir string
	// ScratchDir is the upload scratch directory.
	ScratchDir string
	// StaticDir holds the web UI files. Defaults to "ui/static".
	StaticDir string
}

// knowledgeStore is the slice of the engine the server needs for workspace
// status and reset. *knowledge.Engine satisfies it.
type knowledgeStore interface {
	Stats() knowledge.Stats
	Init(ctx context.Context) error
	Finalize(ctx context.Context) error
}

// Deps holds the server's collaborators, constructed by the serve command.
type Deps struct {
	// Runner serializes all engine access.
	Runner *bridge.Runner
	// Engine is the knowledge store behind the API.
	Engine knowledgeStore
	// Ingestor runs the document intake pipeline.
	Ingestor *ingest.Ingestor
	// Query answers questions.
	Query *query.Service
}

// Server is the HTTP server exposing the document assistant API.
type Server struct {
	// deps holds the orchestration collaborators.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments for this server instance.
	metrics *serverMetrics
	// opMu serializes ingest and reset so a reset never interleaves with an
	// upload that is still writing scratch files.
	opMu sync.Mutex
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
	// Mode is the retrieval mode: naive, local, global, hybrid, mix, or "all"
	// to run every mode. Defaults to hybrid.
	Mode string `json:"mode"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// Query echoes the question that was asked.
	Query string `json:"query"`
	// Answers holds one entry per mode that ran.
	Answers []query.Answer `json:"answers"`
}

// documentResult describes one uploaded file's outcome.
type documentResult struct {
	// FileName is the sanitized name the upload was stored under.
	FileName string `json:"fileName"`
	// TextBytes is the length of the indexed text.
	TextBytes int `json:"textBytes"`
	// ElapsedMS is the pipeline duration in milliseconds.
	ElapsedMS int64 `json:"elapsedMs"`
	// Error is the failure reason when this file was not indexed.
	// Empty on success.
	Error string `json:"error,omitempty"`
}

// documentsResponse is the JSON response for POST /api/documents.
type documentsResponse struct {
	// Documents holds one entry per upload, failed or indexed.
	Documents []documentResult `json:"documents"`
}

// workspaceResponse is the JSON response for GET /api/workspace.
type workspaceResponse struct {
	// Dir is the knowledge store directory.
	Dir string `json:"dir"`
	// Exists indicates at least one index artifact is present.
	Exists bool `json:"exists"`
	// Artifacts lists the artifact files currently present in Dir.
	Artifacts []string `json:"artifacts"`
	// Documents, Chunks, Entities, Relationships summarise the store contents.
	Documents     int `json:"documents"`
	Chunks        int `json:"chunks"`
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	// Processed lists file names ingested in this server session.
	Processed []string `json:"processed"`
}

// resetResponse is the JSON response for POST /api/workspace/reset.
type resetResponse struct {
	// Reset is true when both directories were cleared and recreated.
	Reset bool `json:"reset"`
}
