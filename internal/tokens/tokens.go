// Package tokens estimates model token counts from text length.
//
// The heuristic is roughly four characters per token. Counts are only used
// for before/after comparisons, never for exact model accounting.
package tokens

import "unicode/utf8"

const DefaultCharsPerToken = 4.0

// Counter estimates tokens with a fixed characters-per-token ratio.
type Counter struct {
	CharsPerToken float64
}

var defaultCounter = Counter{CharsPerToken: DefaultCharsPerToken}

func NewCounter(charsPerToken float64) Counter {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return Counter{CharsPerToken: charsPerToken}
}

// Estimate returns the approximate token count of text. Empty text is 0.
func (c Counter) Estimate(text string) int {
	if text == "" {
		return 0
	}
	ratio := c.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	return int(float64(utf8.RuneCountInString(text)) / ratio)
}

func Estimate(text string) int {
	return defaultCounter.Estimate(text)
}

// EstimateFromBytes approximates the token count of a file of the given size.
func EstimateFromBytes(size int64) int {
	if size <= 0 {
		return 0
	}
	return int(size / int64(DefaultCharsPerToken))
}
