// Package query orchestrates question answering: it routes queries to the
// knowledge engine through the bridge runner, times them, and records
// answered queries in the history store.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aTul-07kn/custom-lightRAG/internal/bridge"
	"github.com/aTul-07kn/custom-lightRAG/internal/knowledge"
	"github.com/aTul-07kn/custom-lightRAG/internal/store"
)

// defaultTimeout bounds a single query, covering retrieval plus one model call.
const defaultTimeout = 2 * time.Minute

// Querier is the slice of the knowledge engine the service needs.
type Querier interface {
	Query(ctx context.Context, query string, mode knowledge.Mode) (string, error)
}

// Answer is the outcome of running one query in one mode.
type Answer struct {
	// Mode is the retrieval mode the query ran under.
	Mode knowledge.Mode `json:"mode"`
	// Text is the model's answer. Empty when Err is set.
	Text string `json:"answer"`
	// Elapsed is how long the query took.
	Elapsed time.Duration `json:"-"`
	// Err carries the failure for this mode, if any.
	Err string `json:"error,omitempty"`
}

// MarshalJSON reports Elapsed in whole milliseconds under elapsed_ms, since
// a raw time.Duration would serialize as nanoseconds.
func (a Answer) MarshalJSON() ([]byte, error) {
	type wire struct {
		Mode      knowledge.Mode `json:"mode"`
		Text      string         `json:"answer"`
		ElapsedMS int64          `json:"elapsed_ms"`
		Err       string         `json:"error,omitempty"`
	}
	return json.Marshal(wire{
		Mode:      a.Mode,
		Text:      a.Text,
		ElapsedMS: a.Elapsed.Milliseconds(),
		Err:       a.Err,
	})
}

// Config holds the service's collaborators.
type Config struct {
	// Runner serializes engine access.
	Runner *bridge.Runner
	// Engine answers queries.
	Engine Querier
	// History receives answered queries. Optional.
	History store.HistoryStore
	// Timeout bounds a single query (default: 2m).
	Timeout time.Duration
	// Logger receives progress events. Defaults to slog.Default.
	Logger *slog.Logger
}

// Service runs queries against the knowledge engine.
type Service struct {
	runner  *bridge.Runner
	engine  Querier
	history store.HistoryStore
	timeout time.Duration
	log     *slog.Logger
}

// New validates cfg and constructs a Service.
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("query: nil config")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("query: bridge runner is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("query: engine is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		runner:  cfg.Runner,
		engine:  cfg.Engine,
		history: cfg.History,
		timeout: timeout,
		log:     log,
	}, nil
}

// Run answers a single query in the given mode.
func (s *Service) Run(ctx context.Context, question string, mode knowledge.Mode) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("query: empty question")
	}
	if _, err := knowledge.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := s.runner.SubmitAndWait(ctx, func(taskCtx context.Context) (any, error) {
		return s.engine.Query(taskCtx, question, mode)
	}, s.timeout)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("query: mode %s: %w", mode, err)
	}

	text, _ := out.(string)
	ans := &Answer{Mode: mode, Text: text, Elapsed: elapsed}
	s.record(ctx, question, ans)
	s.log.Info("query: answered",
		slog.String("mode", string(mode)),
		slog.Duration("elapsed", elapsed),
	)
	return ans, nil
}

// RunAll answers the query in every retrieval mode, in order. A failure in
// one mode is reported in that mode's Answer and does not stop the others.
func (s *Service) RunAll(ctx context.Context, question string) ([]Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("query: empty question")
	}

	answers := make([]Answer, 0, len(knowledge.Modes))
	for _, mode := range knowledge.Modes {
		ans, err := s.Run(ctx, question, mode)
		if err != nil {
			s.log.Warn("query: mode failed",
				slog.String("mode", string(mode)),
				slog.String("error", err.Error()),
			)
			answers = append(answers, Answer{Mode: mode, Err: err.Error()})
			continue
		}
		answers = append(answers, *ans)
	}
	return answers, nil
}

// record writes the answer to the history store, logging failures instead of
// surfacing them; history is best-effort.
func (s *Service) record(ctx context.Context, question string, ans *Answer) {
	if s.history == nil {
		return
	}
	err := s.history.Record(ctx, store.Entry{
		Query:   question,
		Mode:    string(ans.Mode),
		Answer:  ans.Text,
		Elapsed: ans.Elapsed,
	})
	if err != nil {
		s.log.Warn("query: history record failed", slog.String("error", err.Error()))
	}
}
