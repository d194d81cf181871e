package knowledge

import "strings"

// charsPerToken is the conservative character-to-token ratio used for chunk
// sizing. The engine supports multiple model backends with different
// tokenizers, so an exact count is not possible; 1 token ≈ 4 characters is
// the standard heuristic for English prose.
const charsPerToken = 4

// estimateTokens returns a rough token count for s.
func estimateTokens(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// chunkText splits text into overlapping chunks of roughly tokenSize tokens
// with overlapTokens of overlap between consecutive chunks. Chunk boundaries
// snap backwards to the nearest sentence or line break when one falls inside
// the last quarter of the window, so chunks tend to end on natural
// boundaries rather than mid-sentence.
func chunkText(text string, tokenSize, overlapTokens int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if tokenSize <= 0 {
		tokenSize = 200
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= tokenSize {
		overlapTokens = tokenSize / 5
	}

	size := tokenSize * charsPerToken
	overlap := overlapTokens * charsPerToken

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		cut := snapToBoundary(text, start, end)
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	// Drop chunks that trimmed down to nothing.
	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// snapToBoundary returns a cut position at or before end, preferring a
// sentence terminator or newline within the last quarter of the window.
// It never cuts a UTF-8 sequence in half.
func snapToBoundary(text string, start, end int) int {
	floor := end - (end-start)/4
	for i := end; i > floor; i-- {
		switch text[i-1] {
		case '\n', '.', '!', '?':
			return i
		}
	}
	// No natural boundary — back up to a rune boundary.
	for end > start && end < len(text) && text[end]&0xC0 == 0x80 {
		end--
	}
	return end
}
