package model

import "time"

// Bank holds every pool keyed by category then difficulty.
type Bank map[string]map[Difficulty][]Question

// Pool returns the ordered pool for one (category, difficulty) pair.
// A missing pool is returned as nil.
func (b Bank) Pool(category string, difficulty Difficulty) []Question {
	return b[category][difficulty]
}

// Empty reports whether the bank contains no questions at all.
func (b Bank) Empty() bool {
	for _, diffs := range b {
		for _, pool := range diffs {
			if len(pool) > 0 {
				return false
			}
		}
	}
	return true
}

// WireBank is the published bank layout: {category: [{difficulty: [...]}]}.
type WireBank map[string][]map[Difficulty][]Question

// Wire converts b to its published layout.
func (b Bank) Wire() WireBank {
	out := make(WireBank, len(b))
	for cat, diffs := range b {
		out[cat] = []map[Difficulty][]Question{diffs}
	}
	return out
}

// BankSummary feeds the wheel: per-pool time limits and sizes.
type BankSummary struct {
	DifficultyTimes map[string]map[Difficulty]int `json:"difficultyTimes"`
	PoolSizes       map[string]map[Difficulty]int `json:"poolSizes"`
	LoadedAt        time.Time                     `json:"loadedAt"`
	Source          string                        `json:"source"`
}

// Summarize builds a BankSummary. A pool's time is taken from its first question.
func (b Bank) Summarize() BankSummary {
	sum := BankSummary{
		DifficultyTimes: make(map[string]map[Difficulty]int, len(b)),
		PoolSizes:       make(map[string]map[Difficulty]int, len(b)),
	}
	for cat, diffs := range b {
		times := make(map[Difficulty]int, len(diffs))
		sizes := make(map[Difficulty]int, len(diffs))
		for diff, pool := range diffs {
			sizes[diff] = len(pool)
			if len(pool) > 0 {
				times[diff] = pool[0].Waktu
			} else {
				times[diff] = 0
			}
		}
		sum.DifficultyTimes[cat] = times
		sum.PoolSizes[cat] = sizes
	}
	return sum
}
