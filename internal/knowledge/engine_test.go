package knowledge

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aTul-07kn/custom-lightRAG/internal/workspace"
)

// fakeEmbedder produces deterministic bag-of-words vectors so that texts
// sharing words get a high cosine similarity without any network calls.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 64)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?()[]\"'")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			v[h.Sum32()%64]++
		}
		out[i] = v
	}
	return out, nil
}

// fakeCompleter answers extraction prompts with a fixed record set and
// answer prompts by echoing a marker plus whether context was supplied.
type fakeCompleter struct {
	extraction string
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	if strings.Contains(system, "knowledge-graph extraction") {
		return f.extraction, nil
	}
	if strings.Contains(prompt, "Context:") {
		return "Q1 revenue grew 10% according to the report.", nil
	}
	return "no context was provided", nil
}

// defaultExtraction is a well-formed extraction response naming two entities
// and one relationship.
const defaultExtraction = `("entity"<|>Q1 REVENUE<|>metric<|>Quarterly revenue for the first quarter.)
("entity"<|>ACME CORP<|>organization<|>The company whose revenue is reported.)
("relationship"<|>ACME CORP<|>Q1 REVENUE<|>Acme Corp reported Q1 revenue growth of 10%.<|>revenue,growth<|>8)
<|COMPLETE|>`

// newTestEngine builds an initialized engine over a temp dir with the fakes.
func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	eng, err := New(&Config{
		WorkingDir: dir,
		Embedder:   &fakeEmbedder{},
		Completer:  &fakeCompleter{extraction: defaultExtraction},
		TopK:       5,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := eng.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return eng, dir
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	comp := &fakeCompleter{}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "missing dir", cfg: &Config{Embedder: emb, Completer: comp}, wantErr: true},
		{name: "missing embedder", cfg: &Config{WorkingDir: "/tmp/x", Completer: comp}, wantErr: true},
		{name: "missing completer", cfg: &Config{WorkingDir: "/tmp/x", Embedder: emb}, wantErr: true},
		{name: "valid", cfg: &Config{WorkingDir: "/tmp/x", Embedder: emb, Completer: comp}, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestInsertWritesAllArtifacts(t *testing.T) {
	t.Parallel()

	eng, dir := newTestEngine(t)
	err := eng.Insert(context.Background(), "Acme Corp published its results. Q1 revenue grew 10% year over year.")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	for _, name := range workspace.ArtifactFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("artifact %s missing after Insert: %v", name, err)
		}
	}

	stats := eng.Stats()
	if stats.Documents != 1 {
		t.Errorf("Stats().Documents = %d, want 1", stats.Documents)
	}
	if stats.Chunks == 0 {
		t.Error("Stats().Chunks = 0, want > 0")
	}
	if stats.Entities != 2 {
		t.Errorf("Stats().Entities = %d, want 2", stats.Entities)
	}
	if stats.Relationships != 1 {
		t.Errorf("Stats().Relationships = %d, want 1", stats.Relationships)
	}
}

func TestInsertSkipsDuplicateDocument(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	const text = "Q1 revenue grew 10% at Acme Corp."

	if err := eng.Insert(context.Background(), text); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	if err := eng.Insert(context.Background(), text); err != nil {
		t.Fatalf("second Insert() error = %v", err)
	}
	if got := eng.Stats().Documents; got != 1 {
		t.Errorf("Stats().Documents = %d after duplicate insert, want 1", got)
	}
}

func TestInsertRejectsEmptyText(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	if err := eng.Insert(context.Background(), "   \n\t "); err == nil {
		t.Error("Insert() with blank text returned nil error")
	}
}

func TestQueryAllModes(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	if err := eng.Insert(context.Background(), "Acme Corp published results. Q1 revenue grew 10% year over year."); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			answer, err := eng.Query(context.Background(), "What grew 10%?", mode)
			if err != nil {
				t.Fatalf("Query(mode=%s) error = %v", mode, err)
			}
			if answer == "" {
				t.Errorf("Query(mode=%s) returned empty answer", mode)
			}
		})
	}
}

func TestQueryNaiveFindsRelevantChunk(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	if err := eng.Insert(context.Background(), "Q1 revenue grew 10% compared to last year."); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	answer, err := eng.Query(context.Background(), "What grew 10%?", ModeNaive)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer == NoContextAnswer {
		t.Error("naive query found no context for an on-topic question")
	}
}

func TestQueryNoContext(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	// Nothing ingested — every mode must return the canned answer.
	answer, err := eng.Query(context.Background(), "anything at all", ModeNaive)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer != NoContextAnswer {
		t.Errorf("Query() on empty store = %q, want NoContextAnswer", answer)
	}
}

func TestQueryInvalidMode(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	if _, err := eng.Query(context.Background(), "q", Mode("turbo")); err == nil {
		t.Error("Query() with invalid mode returned nil error")
	}
}

// shortEmbedder violates the parallel-slice contract by returning no vectors.
type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, nil
}

// TestQueryRejectsShortEmbedderOutput verifies a misbehaving embedder yields
// an error rather than a panic on the query path.
func TestQueryRejectsShortEmbedderOutput(t *testing.T) {
	t.Parallel()

	eng, err := New(&Config{
		WorkingDir: t.TempDir(),
		Embedder:   shortEmbedder{},
		Completer:  &fakeCompleter{},
		TopK:       5,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := eng.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := eng.Query(context.Background(), "anything", ModeNaive); err == nil {
		t.Error("Query() with zero query embeddings returned nil error")
	}
}

// TestReopenPersistedStore verifies a second engine over the same directory
// sees everything the first one wrote.
func TestReopenPersistedStore(t *testing.T) {
	t.Parallel()

	eng, dir := newTestEngine(t)
	if err := eng.Insert(context.Background(), "Acme Corp results: Q1 revenue grew 10%."); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	want := eng.Stats()

	reopened, err := New(&Config{
		WorkingDir: dir,
		Embedder:   &fakeEmbedder{},
		Completer:  &fakeCompleter{extraction: defaultExtraction},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := reopened.Init(context.Background()); err != nil {
		t.Fatalf("Init() on existing store error = %v", err)
	}

	if got := reopened.Stats(); got != want {
		t.Errorf("reopened Stats() = %+v, want %+v", got, want)
	}

	answer, err := reopened.Query(context.Background(), "What grew 10%?", ModeMix)
	if err != nil {
		t.Fatalf("Query() on reopened store error = %v", err)
	}
	if answer == "" || answer == NoContextAnswer {
		t.Errorf("reopened store query = %q, want grounded answer", answer)
	}
}
