// Package server — workspace.go contains the knowledge-store status and
// reset HTTP handlers.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aTul-07kn/custom-lightRAG/internal/logging"
	"github.com/aTul-07kn/custom-lightRAG/internal/workspace"
)

// resetTimeout bounds the reset task submitted to the bridge runner. Reset is
// filesystem-only plus a re-open, so it completes quickly.
const resetTimeout = 30 * time.Second

// handleWorkspace handles GET /api/workspace. It reports which index
// artifacts exist and summarises the store contents.
func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	resp := workspaceResponse{
		Dir:       s.cfg.WorkspaceDir,
		Exists:    workspace.Exists(s.cfg.WorkspaceDir),
		Artifacts: []string{},
		Processed: s.deps.Ingestor.Processed(),
	}
	for _, name := range workspace.ArtifactFiles {
		if _, err := os.Stat(filepath.Join(s.cfg.WorkspaceDir, name)); err == nil {
			resp.Artifacts = append(resp.Artifacts, name)
		}
	}

	stats := s.deps.Engine.Stats()
	resp.Documents = stats.Documents
	resp.Chunks = stats.Chunks
	resp.Entities = stats.Entities
	resp.Relationships = stats.Relationships

	writeJSON(w, http.StatusOK, resp)
}

// handleReset handles POST /api/workspace/reset. It flushes the engine's view
// of the store, removes both the store and scratch trees, then re-initialises
// the engine over the recreated empty directories. The whole sequence runs as
// one bridge task so no query or ingest can interleave with it.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	s.opMu.Lock()
	defer s.opMu.Unlock()

	_, err := s.deps.Runner.SubmitAndWait(r.Context(), func(taskCtx context.Context) (any, error) {
		if err := s.deps.Engine.Finalize(taskCtx); err != nil {
			return nil, err
		}
		if err := workspace.Reset(s.cfg.WorkspaceDir, s.cfg.ScratchDir); err != nil {
			return nil, err
		}
		return nil, s.deps.Engine.Init(taskCtx)
	}, resetTimeout)
	if err != nil {
		log.Error("workspace: reset failed", "error", err)
		http.Error(w, "reset failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	log.Info("workspace: reset complete",
		"dir", s.cfg.WorkspaceDir,
		"scratch", s.cfg.ScratchDir,
	)
	writeJSON(w, http.StatusOK, resetResponse{Reset: true})
}
