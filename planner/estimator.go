package planner

import (
	"unicode"
	"unicode/utf8"
)

// TokenEstimator approximates the prompt cost of one entry.
type TokenEstimator interface {
	EstimateTokens(key, value string) int
}

// CharEstimator estimates tokens from rune counts. Latin text runs about
// CharsPerToken runes per token; Han, Hiragana, Katakana and Hangul runes
// count one token each.
type CharEstimator struct {
	CharsPerToken    int
	PerEntryOverhead int
}

// DefaultEstimator returns the estimator used when none is configured.
func DefaultEstimator() CharEstimator {
	return CharEstimator{CharsPerToken: 4, PerEntryOverhead: 4}
}

// EstimateTokens implements TokenEstimator.
func (c CharEstimator) EstimateTokens(key, value string) int {
	per := c.CharsPerToken
	if per <= 0 {
		per = 4
	}

	latin, wide := countRunes(key)
	l, w := countRunes(value)
	latin += l
	wide += w

	return (latin+per-1)/per + wide + c.PerEntryOverhead
}

func countRunes(s string) (latin, wide int) {
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			wide++
		} else {
			latin++
		}
	}
	return latin, wide
}
