package service

import (
	"errors"
	"math/rand/v2"
	"sync"
)

// ErrNoQuestionsAvailable is returned when a pool has no questions at all.
// Exhausting a non-empty pool is not an error: the cycle restarts.
var ErrNoQuestionsAvailable = errors.New("no questions available")

// Rand is the uniform source used for draws. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Pick is the outcome of one draw.
type Pick struct {
	Index     int
	Remaining int   // unused indices left after this draw
	Reset     bool  // the pool was exhausted and its cycle restarted
	Used      []int // the pool's used set after recording Index
}

// QuestionSelector draws the next unseen index of a pool.
type QuestionSelector struct {
	mu  sync.Mutex
	rnd Rand
}

// NewQuestionSelector creates a selector. A nil rnd uses the global source.
func NewQuestionSelector(rnd Rand) *QuestionSelector {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &QuestionSelector{rnd: rnd}
}

// Pick draws uniformly from [0, poolSize) minus used. When nothing is left the
// used set is cleared and the draw covers the whole pool again. Indices in
// used that fall outside the pool are ignored and dropped from Pick.Used.
func (s *QuestionSelector) Pick(poolSize int, used []int) (Pick, error) {
	if poolSize <= 0 {
		return Pick{}, ErrNoQuestionsAvailable
	}

	seen := make(map[int]struct{}, len(used))
	kept := make([]int, 0, len(used)+1)
	for _, i := range used {
		if i < 0 || i >= poolSize {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		kept = append(kept, i)
	}

	available := make([]int, 0, poolSize-len(kept))
	for i := 0; i < poolSize; i++ {
		if _, ok := seen[i]; !ok {
			available = append(available, i)
		}
	}

	reset := false
	if len(available) == 0 {
		reset = true
		kept = kept[:0]
		for i := 0; i < poolSize; i++ {
			available = append(available, i)
		}
	}

	s.mu.Lock()
	idx := available[s.rnd.IntN(len(available))]
	s.mu.Unlock()

	return Pick{
		Index:     idx,
		Remaining: len(available) - 1,
		Reset:     reset,
		Used:      append(kept, idx),
	}, nil
}
