package audit

import (
	"os"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"secret set", "OPENAI_API_KEY", "sk-abc123", "set"},
		{"secret unset", "OPENAI_API_KEY", "", "unset"},
		{"langfuse secret set", "LANGFUSE_SECRET_KEY", "sk-lf-123", "set"},
		{"non-secret passes through", "MODEL_PROVIDER", "azure", "azure"},
		{"non-secret path passes through", "WORKSPACE_DIR", "TEMP", "TEMP"},
		{"non-secret unset", "MODEL_PROVIDER", "", "unset"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitiseKey(tc.key, tc.value); got != tc.want {
				t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
			}
		})
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.lightrag/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.lightrag/config.yaml" {
			t.Errorf("expected '~/.lightrag/config.yaml', got %q", got)
		}
	}
}
