package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aTul-07kn/custom-lightRAG/internal/bridge"
)

// fakeConverter returns canned text for any path, or a fixed error.
type fakeConverter struct {
	text string
	err  error
}

func (f *fakeConverter) Convert(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

// fakeInserter records what was inserted.
type fakeInserter struct {
	texts []string
	err   error
}

func (f *fakeInserter) Insert(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func newTestIngestor(t *testing.T, conv *fakeConverter, ins *fakeInserter) (*Ingestor, string) {
	t.Helper()
	dir := t.TempDir()
	runner := bridge.NewRunner()
	t.Cleanup(runner.Stop)
	ing, err := New(&Config{
		ScratchDir: dir,
		Converter:  conv,
		Runner:     runner,
		Engine:     ins,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ing, dir
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	runner := bridge.NewRunner()
	defer runner.Stop()
	conv := &fakeConverter{}
	ins := &fakeInserter{}

	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "missing scratch dir", cfg: &Config{Converter: conv, Runner: runner, Engine: ins}},
		{name: "missing converter", cfg: &Config{ScratchDir: "/tmp/x", Runner: runner, Engine: ins}},
		{name: "missing runner", cfg: &Config{ScratchDir: "/tmp/x", Converter: conv, Engine: ins}},
		{name: "missing engine", cfg: &Config{ScratchDir: "/tmp/x", Converter: conv, Runner: runner}},
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

func TestIngestWritesCopyAndText(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{text: "Report  body.\n\n\n\nSecond   part."}
	ins := &fakeInserter{}
	ing, dir := newTestIngestor(t, conv, ins)

	res, err := ing.Ingest(context.Background(), "report.pdf", []byte("%PDF-fake"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if res.FileName != "report.pdf" {
		t.Errorf("FileName = %q, want report.pdf", res.FileName)
	}
	if res.StoredPath != filepath.Join(dir, "report.pdf") {
		t.Errorf("StoredPath = %q", res.StoredPath)
	}
	if res.TextPath != filepath.Join(dir, "report.txt") {
		t.Errorf("TextPath = %q", res.TextPath)
	}

	stored, err := os.ReadFile(res.StoredPath)
	if err != nil || string(stored) != "%PDF-fake" {
		t.Errorf("stored copy = %q, err = %v", stored, err)
	}

	// The .txt file and the inserted text both carry the normalized form.
	const wantText = "Report body.\n\nSecond part."
	txt, err := os.ReadFile(res.TextPath)
	if err != nil || string(txt) != wantText {
		t.Errorf("extracted text = %q, err = %v, want %q", txt, err, wantText)
	}
	if len(ins.texts) != 1 || ins.texts[0] != wantText {
		t.Errorf("inserted = %v, want one normalized text", ins.texts)
	}
	if res.TextBytes != len(wantText) {
		t.Errorf("TextBytes = %d, want %d", res.TextBytes, len(wantText))
	}
}

func TestIngestRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	ing, _ := newTestIngestor(t, &fakeConverter{text: "x"}, &fakeInserter{})
	if _, err := ing.Ingest(context.Background(), "empty.pdf", nil); err == nil {
		t.Error("Ingest() with empty payload returned nil error")
	}
}

func TestIngestSanitizesPathTraversal(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{text: "content"}
	ing, dir := newTestIngestor(t, conv, &fakeInserter{})

	res, err := ing.Ingest(context.Background(), "../../etc/passwd.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.FileName != "passwd.pdf" {
		t.Errorf("FileName = %q, want basename only", res.FileName)
	}
	if filepath.Dir(res.StoredPath) != dir {
		t.Errorf("StoredPath = %q escaped the scratch dir", res.StoredPath)
	}
}

func TestIngestGeneratesNameForUnusableFilename(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{text: "content"}
	ing, dir := newTestIngestor(t, conv, &fakeInserter{})

	res, err := ing.Ingest(context.Background(), "..", []byte("x"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.FileName == ".." || res.FileName == "" {
		t.Fatalf("FileName = %q, want generated name", res.FileName)
	}
	if filepath.Dir(res.StoredPath) != dir {
		t.Errorf("StoredPath = %q escaped the scratch dir", res.StoredPath)
	}
}

func TestIngestConverterError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("unreadable pdf")
	ing, _ := newTestIngestor(t, &fakeConverter{err: wantErr}, &fakeInserter{})

	_, err := ing.Ingest(context.Background(), "bad.pdf", []byte("x"))
	if !errors.Is(err, wantErr) {
		t.Errorf("Ingest() error = %v, want wrapped converter error", err)
	}
}

func TestIngestBlankExtractionError(t *testing.T) {
	t.Parallel()

	ing, _ := newTestIngestor(t, &fakeConverter{text: "   \n\n "}, &fakeInserter{})
	if _, err := ing.Ingest(context.Background(), "blank.pdf", []byte("x")); err == nil {
		t.Error("Ingest() with blank extraction returned nil error")
	}
}

func TestIngestInsertError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("index failed")
	ing, _ := newTestIngestor(t, &fakeConverter{text: "content"}, &fakeInserter{err: wantErr})

	_, err := ing.Ingest(context.Background(), "doc.pdf", []byte("x"))
	if !errors.Is(err, wantErr) {
		t.Errorf("Ingest() error = %v, want wrapped insert error", err)
	}
}

func TestProcessedTracksSession(t *testing.T) {
	t.Parallel()

	ing, _ := newTestIngestor(t, &fakeConverter{text: "content"}, &fakeInserter{})

	if got := ing.Processed(); len(got) != 0 {
		t.Fatalf("Processed() = %v before any ingest", got)
	}
	for _, name := range []string{"a.pdf", "b.pdf"} {
		if _, err := ing.Ingest(context.Background(), name, []byte("x")); err != nil {
			t.Fatalf("Ingest(%s) error = %v", name, err)
		}
	}
	got := ing.Processed()
	if strings.Join(got, ",") != "a.pdf,b.pdf" {
		t.Errorf("Processed() = %v, want [a.pdf b.pdf]", got)
	}
}
