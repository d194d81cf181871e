package convert

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "tab run collapses", in: "a\t\tb", want: "a b"},
		{name: "space run collapses", in: "a    b", want: "a b"},
		{name: "mixed spaces and tabs", in: "a \t \t b", want: "a b"},
		{name: "four newlines keep one blank line", in: "a\n\n\n\nb", want: "a\n\nb"},
		{name: "single blank line preserved", in: "a\n\nb", want: "a\n\nb"},
		{name: "single newline preserved", in: "a\nb", want: "a\nb"},
		{name: "empty input", in: "", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
