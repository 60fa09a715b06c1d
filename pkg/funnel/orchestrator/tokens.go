package orchestrator

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports how many model tokens text costs.
type TokenCounter func(text string) int

// NewTokenCounter uses the cl100k_base encoding, or a four-characters-per-token
// estimate when the encoding cannot be loaded.
func NewTokenCounter() (TokenCounter, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return EstimateTokens, err
	}
	return func(text string) int {
		return len(encoder.Encode(text, nil, nil))
	}, nil
}

func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
