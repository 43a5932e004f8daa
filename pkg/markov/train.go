package markov

import (
	"fmt"
	"log/slog"
)

// BuildModel slides a window of order characters over text and records, for
// every window, the character that follows it. The last window is followed
// by nothing and records the empty successor, which acts as an end-of-text
// marker during generation.
//
// Calls are cumulative: each one adds to the transitions already held by
// the generator. An order longer than the text records nothing and is not an
// error. An order below 1 returns ErrInvalidOrder.
func (g *TextGenerator) BuildModel(text string, order int) error {
	if order < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}

	runes := []rune(text)
	added := 0
	for i := 0; i <= len(runes)-order; i++ {
		state := string(runes[i : i+order])
		var successor string
		if i+order < len(runes) {
			successor = string(runes[i+order])
		}
		g.chain.AddTransition(state, successor)
		added++
	}

	g.logger.Debug("Model built",
		slog.Int("order", order),
		slog.Int("text_length", len(runes)),
		slog.Int("transitions_added", added),
		slog.Int("total_transitions", g.chain.Len()),
	)
	return nil
}
