package markov

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Generate walks the chain starting from startState and returns the produced
// text, which always begins with startState and is at most length
// characters long unless a successor spans several characters.
//
// At each step the lookup key is the trailing slice of the produced text
// with as many characters as startState. This equals the training order only
// when startState has exactly order characters; any other start length
// queries states that were never recorded and ends the walk early.
//
// Generation stops when the iteration budget of length minus the length of
// startState is used up or when the current window has no successor. An
// unknown startState or a length not larger than startState yields
// startState unchanged.
func (g *TextGenerator) Generate(length int, startState string) string {
	windowLen := utf8.RuneCountInString(startState)
	if length <= windowLen {
		return startState
	}

	var builder strings.Builder
	builder.WriteString(startState)
	window := startState
	budget := length - windowLen

	generated := 0
	deadEnd := false
	for ; generated < budget; generated++ {
		next, ok := g.chain.Next(window)
		if !ok {
			deadEnd = true
			break
		}
		builder.WriteString(next)
		window = lastRunes(builder.String(), windowLen)
	}

	if deadEnd {
		g.logger.Debug("Generation terminated due to dead-end",
			slog.String("last_window", window),
			slog.Int("generated_length", generated),
		)
	} else {
		g.logger.Debug("Generation terminated by reaching length",
			slog.Int("length", length),
			slog.Int("generated_length", generated),
		)
	}

	return builder.String()
}

// lastRunes returns the trailing n runes of s, or all of s if it is shorter.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}
