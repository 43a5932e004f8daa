package markov

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
)

// RandSource is the source of randomness used to pick successors. A
// *rand.Rand from math/rand/v2 satisfies it, which lets tests pass a
// seeded generator.
type RandSource interface {
	IntN(n int) int
}

// globalRand uses the process-seeded top level functions of math/rand/v2.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Chain is a transition table mapping a state to every successor observed
// after it, in the order they were observed. Duplicate successors are kept,
// so a successor recorded N times is N times as likely to be picked.
//
// A Chain is not safe for concurrent use. Mutations must not overlap with
// lookups from another goroutine.
type Chain struct {
	transitions map[string][]string
	total       int
	rnd         RandSource
}

// NewChain returns an empty Chain. A nil src selects the process-wide
// random source.
func NewChain(src RandSource) *Chain {
	if src == nil {
		src = globalRand{}
	}
	return &Chain{
		transitions: make(map[string][]string),
		rnd:         src,
	}
}

// AddTransition appends successor to the list recorded for state. An empty
// successor marks the end of the training text.
func (c *Chain) AddTransition(state, successor string) {
	c.transitions[state] = append(c.transitions[state], successor)
	c.total++
}

// Next picks one of the successors recorded for state uniformly at random.
// The boolean is false when nothing was ever recorded for state.
func (c *Chain) Next(state string) (string, bool) {
	successors := c.transitions[state]
	if len(successors) == 0 {
		return "", false
	}
	return successors[c.rnd.IntN(len(successors))], true
}

// Successors returns a copy of the successors recorded for state, in
// insertion order.
func (c *Chain) Successors(state string) []string {
	successors, ok := c.transitions[state]
	if !ok {
		return nil
	}
	out := make([]string, len(successors))
	copy(out, successors)
	return out
}

// Len returns the total number of recorded transitions.
func (c *Chain) Len() int {
	return c.total
}

// NumStates returns the number of distinct states.
func (c *Chain) NumStates() int {
	return len(c.transitions)
}

// States returns every recorded state in sorted order.
func (c *Chain) States() []string {
	states := make([]string, 0, len(c.transitions))
	for state := range c.transitions {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// Each calls fn for every state in sorted order. The successors slice is
// owned by the chain and must not be modified.
func (c *Chain) Each(fn func(state string, successors []string)) {
	for _, state := range c.States() {
		fn(state, c.transitions[state])
	}
}

// String renders the full table, one state per line. States are sorted and
// quoted so that the empty end-of-text successor stays visible.
func (c *Chain) String() string {
	var sb strings.Builder
	c.Each(func(state string, successors []string) {
		sb.WriteString(strconv.Quote(state))
		sb.WriteString(" -> [")
		for i, s := range successors {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.Quote(s))
		}
		sb.WriteString("]\n")
	})
	return sb.String()
}
