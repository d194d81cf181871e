package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aTul-07kn/custom-lightRAG/internal/bridge"
	"github.com/aTul-07kn/custom-lightRAG/internal/knowledge"
	"github.com/aTul-07kn/custom-lightRAG/internal/store"
)

// fakeEngine answers per-mode, failing modes listed in failModes.
type fakeEngine struct {
	failModes map[knowledge.Mode]error
}

func (f *fakeEngine) Query(_ context.Context, q string, mode knowledge.Mode) (string, error) {
	if err := f.failModes[mode]; err != nil {
		return "", err
	}
	return "answer via " + string(mode), nil
}

func newTestService(t *testing.T, engine Querier, history store.HistoryStore) *Service {
	t.Helper()
	runner := bridge.NewRunner()
	t.Cleanup(runner.Stop)
	s, err := New(&Config{Runner: runner, Engine: engine, History: history})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	runner := bridge.NewRunner()
	defer runner.Stop()
	engine := &fakeEngine{}

	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "missing runner", cfg: &Config{Engine: engine}},
		{name: "missing engine", cfg: &Config{Runner: runner}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tc.cfg); err == nil {
				t.Error("New() returned nil error")
			}
		})
	}
}

func TestRunAnswersAndTimes(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeEngine{}, nil)
	ans, err := s.Run(context.Background(), "what grew?", knowledge.ModeHybrid)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ans.Text != "answer via hybrid" {
		t.Errorf("Text = %q", ans.Text)
	}
	if ans.Mode != knowledge.ModeHybrid {
		t.Errorf("Mode = %q", ans.Mode)
	}
	if ans.Elapsed < 0 {
		t.Errorf("Elapsed = %v", ans.Elapsed)
	}
}

func TestRunRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeEngine{}, nil)
	if _, err := s.Run(context.Background(), "  \n", knowledge.ModeNaive); err == nil {
		t.Error("Run() with empty question returned nil error")
	}
}

func TestRunRejectsInvalidMode(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeEngine{}, nil)
	if _, err := s.Run(context.Background(), "q", knowledge.Mode("turbo")); err == nil {
		t.Error("Run() with invalid mode returned nil error")
	}
}

func TestRunPropagatesEngineError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("model down")
	engine := &fakeEngine{failModes: map[knowledge.Mode]error{knowledge.ModeNaive: wantErr}}
	s := newTestService(t, engine, nil)

	_, err := s.Run(context.Background(), "q", knowledge.ModeNaive)
	if !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want wrapped engine error", err)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	t.Parallel()

	hist, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()

	s := newTestService(t, &fakeEngine{}, hist)
	if _, err := s.Run(context.Background(), "what grew?", knowledge.ModeLocal); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries, err := hist.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if entries[0].Query != "what grew?" || entries[0].Mode != "local" {
		t.Errorf("history entry = %+v", entries[0])
	}
}

func TestRunAllCoversEveryMode(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeEngine{}, nil)
	answers, err := s.RunAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(answers) != len(knowledge.Modes) {
		t.Fatalf("RunAll() returned %d answers, want %d", len(answers), len(knowledge.Modes))
	}
	for i, mode := range knowledge.Modes {
		if answers[i].Mode != mode {
			t.Errorf("answers[%d].Mode = %q, want %q (input order preserved)", i, answers[i].Mode, mode)
		}
		if answers[i].Err != "" {
			t.Errorf("answers[%d].Err = %q", i, answers[i].Err)
		}
	}
}

func TestRunAllIsolatesModeFailures(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{failModes: map[knowledge.Mode]error{
		knowledge.ModeGlobal: errors.New("graph unavailable"),
	}}
	s := newTestService(t, engine, nil)

	answers, err := s.RunAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(answers) != len(knowledge.Modes) {
		t.Fatalf("RunAll() returned %d answers, want %d", len(answers), len(knowledge.Modes))
	}
	for _, ans := range answers {
		if ans.Mode == knowledge.ModeGlobal {
			if ans.Err == "" || !strings.Contains(ans.Err, "graph unavailable") {
				t.Errorf("global answer.Err = %q, want failure recorded", ans.Err)
			}
			continue
		}
		if ans.Err != "" {
			t.Errorf("mode %s failed: %s", ans.Mode, ans.Err)
		}
	}
}
