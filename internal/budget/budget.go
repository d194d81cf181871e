// Package budget provides token budget estimation and context trimming for
// prompts sent to the completion model. Because the application supports
// multiple LLM backends with different tokenizers, this package uses a
// conservative character-based heuristic: 1 token ≈ 4 characters (English
// prose). This deliberately under-estimates token counts to leave headroom
// for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// sectionOverheadTokens accounts for the separator inserted between
	// context sections when the prompt is assembled.
	sectionOverheadTokens = 2

	// DefaultMaxContextTokens is the default retrieval context budget in
	// tokens. Conservative enough to fit within 8k-context models (Llama 3
	// 8B, GPT-3.5) while leaving room for the question and the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimSections drops retrieval context sections from the end until the
// estimated total fits within maxTokens. Retrieval emits sections in
// descending relevance order, so trimming the tail removes the weakest
// context first. The first section is always kept even when it alone
// exceeds the budget; an empty context is worse than an oversized one.
func TrimSections(sections []string, maxTokens int) []string {
	total := 0
	for i, s := range sections {
		total += Estimate(s) + sectionOverheadTokens
		if total > maxTokens && i > 0 {
			return sections[:i]
		}
	}
	return sections
}
