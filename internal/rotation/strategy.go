package rotation

import "github.com/salmonumbrella/llmctl/internal/provider"

// roundRobin cycles through candidates. A cursor past the end (the list
// shrank) restarts at 0.
func roundRobin(s *state, candidates []provider.Token) int {
	if s.index >= len(candidates) {
		s.index = 0
	}
	i := s.index
	s.index = (s.index + 1) % len(candidates)
	return i
}

// weightedRoundRobin is smooth weighted round robin. Counters are rebuilt
// from the weights whenever the candidate count changes. The scan uses a
// strict comparison so equal counters resolve to the lowest index.
func weightedRoundRobin(s *state, candidates []provider.Token) int {
	if len(s.counters) != len(candidates) {
		s.counters = make([]int, len(candidates))
		for i, t := range candidates {
			s.counters[i] = t.EffectiveWeight()
		}
	}

	maxWeight, selected := 0, 0
	for i, c := range s.counters {
		if c > maxWeight {
			maxWeight = c
			selected = i
		}
	}

	total := 0
	for _, t := range candidates {
		total += t.EffectiveWeight()
	}
	s.counters[selected] -= total
	for i, t := range candidates {
		s.counters[i] += t.EffectiveWeight()
	}
	return selected
}

// leastUsed picks the smallest lastUsed; the first occurrence wins ties.
func leastUsed(candidates []provider.Token) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].LastUsed < candidates[best].LastUsed {
			best = i
		}
	}
	return best
}
