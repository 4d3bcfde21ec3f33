package memory

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
	tkErr  error
)

// CountTokens returns the BPE token count of text using the cl100k_base
// encoding. It is a caller-side helper for precomputing Message token
// counts; Append still rejects uncounted messages.
func CountTokens(text string) (int, error) {
	tkOnce.Do(func() {
		tk, tkErr = tiktoken.GetEncoding("cl100k_base")
	})
	if tkErr != nil {
		return 0, fmt.Errorf("load tokenizer: %w", tkErr)
	}
	return len(tk.Encode(text, nil, nil)), nil
}

// MustCountTokens is CountTokens with a rune-count fallback when the
// tokenizer is unavailable (e.g. no network for the encoding tables).
func MustCountTokens(text string) int {
	n, err := CountTokens(text)
	if err != nil {
		// Rough upper bound: one token per rune.
		return len([]rune(text))
	}
	return n
}
