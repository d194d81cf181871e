package convert

import "regexp"

var (
	// horizontalWS matches runs of spaces and tabs (not newlines).
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	// blankLineRuns matches three or more consecutive newlines, i.e. two or
	// more blank lines in a row.
	blankLineRuns = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of horizontal whitespace to a single space and
// caps blank-line runs at one blank line. Single blank lines are preserved
// so paragraph boundaries survive for the chunker.
func Normalize(text string) string {
	text = horizontalWS.ReplaceAllString(text, " ")
	return blankLineRuns.ReplaceAllString(text, "\n\n")
}
