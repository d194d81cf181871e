package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPPinger probes a dependency by issuing a GET against its base URL. It
// satisfies the Pinger interface and is used by GET /api/ready for the model
// and embedding backends, which both expose plain-HTTP endpoints.
type HTTPPinger struct {
	// name identifies the dependency in readiness responses (e.g. "ollama").
	name string
	// url is the endpoint to probe.
	url string
	// client is the shared HTTP client with a short timeout.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for the given dependency name and URL.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues a GET against the probe URL. Any response below 500 counts as
// reachable; auth-protected endpoints legitimately return 401/403 to an
// unauthenticated probe.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

// WorkspacePinger reports whether the knowledge store directory is writable.
// A read-only or missing volume fails readiness before the first upload does.
type WorkspacePinger struct {
	// dir is the knowledge store directory.
	dir string
}

// NewWorkspacePinger constructs a WorkspacePinger for the given directory.
func NewWorkspacePinger(dir string) *WorkspacePinger {
	return &WorkspacePinger{dir: dir}
}

// Name returns the dependency label used in readiness responses.
func (p *WorkspacePinger) Name() string { return "workspace" }

// Ping verifies the store directory exists (creating it if needed) and that
// a file can be written and removed inside it.
func (p *WorkspacePinger) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	probe := filepath.Join(p.dir, ".ready-probe")
	if err := os.WriteFile(probe, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}
