// Package resolve provides ordered first-match-wins resolution chains.
package resolve

// Strategy is one named step of a Chain.
type Strategy[In, Out any] struct {
	Name    string
	Resolve func(In) (Out, bool)
}

// Chain is an ordered list of strategies. The first one that succeeds
// supplies the result.
type Chain[In, Out any] []Strategy[In, Out]

// Result is the outcome of a single strategy.
type Result[Out any] struct {
	Strategy string
	Value    Out
}

// Run applies the strategies in order and returns the first success along
// with the name of the strategy that produced it.
func (c Chain[In, Out]) Run(in In) (out Out, strategy string, ok bool) {
	for _, s := range c {
		if v, hit := s.Resolve(in); hit {
			return v, s.Name, true
		}
	}
	return out, "", false
}

// All applies every strategy and returns each success in chain order.
// Callers use it to detect strategies that disagree.
func (c Chain[In, Out]) All(in In) []Result[Out] {
	var out []Result[Out]
	for _, s := range c {
		if v, hit := s.Resolve(in); hit {
			out = append(out, Result[Out]{Strategy: s.Name, Value: v})
		}
	}
	return out
}

// Without returns a copy of c minus the named strategies.
func (c Chain[In, Out]) Without(names ...string) Chain[In, Out] {
	out := make(Chain[In, Out], 0, len(c))
next:
	for _, s := range c {
		for _, n := range names {
			if s.Name == n {
				continue next
			}
		}
		out = append(out, s)
	}
	return out
}
