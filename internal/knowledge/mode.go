package knowledge

import "fmt"

// Mode selects the retrieval strategy used to answer a query.
type Mode string

const (
	// ModeNaive retrieves raw text chunks by vector similarity only.
	ModeNaive Mode = "naive"
	// ModeLocal retrieves entities near the query and their neighborhood.
	ModeLocal Mode = "local"
	// ModeGlobal retrieves relationships near the query.
	ModeGlobal Mode = "global"
	// ModeHybrid combines local and global retrieval.
	ModeHybrid Mode = "hybrid"
	// ModeMix combines graph retrieval with raw chunk retrieval.
	ModeMix Mode = "mix"
)

// Modes is the fixed set of supported retrieval modes in enumeration order.
// "Run all modes" callers iterate this slice; do not reorder.
var Modes = []Mode{ModeNaive, ModeLocal, ModeGlobal, ModeHybrid, ModeMix}

// ParseMode validates s against the supported mode set.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if s == string(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("knowledge: unknown query mode %q — valid modes: naive, local, global, hybrid, mix", s)
}
