package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/model"
)

var (
	ErrMissingParameters = errors.New("category and difficulty are required")
	ErrNoActiveQuestion  = errors.New("session has no active question")
)

// DrawResult is what the client receives after a draw.
type DrawResult struct {
	Question      model.Question `json:"question"`
	QuestionIndex int            `json:"questionIndex"`
	Remaining     int            `json:"remaining"`
	TotalInPool   int            `json:"totalInPool"`
	CycleReset    bool           `json:"cycleReset"`
}

// Recovery is the hydration view of a session after a reload.
type Recovery struct {
	Session       model.SessionState `json:"session"`
	Question      *model.Question    `json:"question"`
	CorrectLetter string             `json:"correctLetter,omitempty"`
	Phase         model.Phase        `json:"phase,omitempty"`
	SecondsLeft   *int               `json:"secondsLeft"`
	Remaining     *int               `json:"remaining"`
	TotalInPool   *int               `json:"totalInPool"`
	StaleQuestion bool               `json:"staleQuestion"`
}

// QuizService drives the wheel/question flow on top of the session store,
// the bank and the selector.
type QuizService struct {
	store    *SessionStore
	pools    PoolProvider
	selector *QuestionSelector
	log      zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(store *SessionStore, pools PoolProvider, selector *QuestionSelector, log zerolog.Logger) *QuizService {
	return &QuizService{
		store:    store,
		pools:    pools,
		selector: selector,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// Draw picks the next unseen question of (category, difficulty), records it
// in the ledger and moves the session onto it with the timer not yet started.
// The resulting state is written as-is so a cycle reset is not undone by a
// union merge with the previous ledger.
func (s *QuizService) Draw(ctx context.Context, current model.SessionState, category, difficulty string) (DrawResult, model.SessionState, Carrier, error) {
	category = strings.TrimSpace(category)
	diff := model.Difficulty(strings.TrimSpace(difficulty))
	if category == "" || diff == "" {
		return DrawResult{}, model.SessionState{}, Carrier{}, ErrMissingParameters
	}
	if !diff.Valid() {
		return DrawResult{}, model.SessionState{}, Carrier{}, ErrNoQuestionsAvailable
	}

	pool, err := s.pools.GetPool(ctx, category, diff)
	if err != nil {
		return DrawResult{}, model.SessionState{}, Carrier{}, err
	}

	pick, err := s.selector.Pick(len(pool), current.UsedQuestions.Indices(category, diff))
	if err != nil {
		return DrawResult{}, model.SessionState{}, Carrier{}, err
	}
	q := pool[pick.Index]

	next := current.Clone()
	next.UsedQuestions.Set(category, diff, pick.Used)
	next.State = model.AppStateQuestion
	next.Category = &category
	next.Difficulty = &diff
	next.QuestionIndex = &pick.Index
	next.TimerStartedAt = nil
	duration := q.Waktu
	if duration < 1 {
		duration = model.DefaultQuestionSeconds
	}
	next.TimerDuration = &duration

	carrier, err := s.store.Write(next)
	if err != nil {
		return DrawResult{}, model.SessionState{}, Carrier{}, fmt.Errorf("write session: %w", err)
	}

	if pick.Reset {
		s.log.Debug().
			Str("category", category).
			Str("difficulty", string(diff)).
			Msg("Pool exhausted, cycle restarted")
	}

	return DrawResult{
		Question:      q,
		QuestionIndex: pick.Index,
		Remaining:     pick.Remaining,
		TotalInPool:   len(pool),
		CycleReset:    pick.Reset,
	}, next, carrier, nil
}

// StartTimer stamps the countdown start with the server clock. It is a no-op
// on the timestamp when the countdown already began, so a double start cannot
// extend the time limit.
func (s *QuizService) StartTimer(current model.SessionState) (model.SessionState, Carrier, error) {
	if !current.InQuestion() {
		return model.SessionState{}, Carrier{}, ErrNoActiveQuestion
	}

	next := current.Clone()
	if next.TimerStartedAt == nil {
		started := s.store.Now().UnixMilli()
		next.TimerStartedAt = &started
	}
	if next.TimerDuration == nil || *next.TimerDuration < 1 {
		d := model.DefaultQuestionSeconds
		next.TimerDuration = &d
	}

	carrier, err := s.store.Write(next)
	if err != nil {
		return model.SessionState{}, Carrier{}, fmt.Errorf("write session: %w", err)
	}
	return next, carrier, nil
}

// Finish returns to the wheel and keeps every used index.
func (s *QuizService) Finish(current model.SessionState) (model.SessionState, Carrier, error) {
	return s.store.MergeWrite(current, wheelPatch(), MergeUnion)
}

// GoBack returns to the wheel and un-consumes the current question so it can
// be drawn again.
func (s *QuizService) GoBack(current model.SessionState) (model.SessionState, Carrier, error) {
	patch := wheelPatch()
	if current.InQuestion() {
		ledger := current.UsedQuestions.Clone()
		cat, diff, idx := *current.Category, *current.Difficulty, *current.QuestionIndex
		ledger.Set(cat, diff, slices.DeleteFunc(ledger.Indices(cat, diff), func(i int) bool {
			return i == idx
		}))
		patch.UsedQuestions = ledger
	}
	return s.store.MergeWrite(current, patch, MergeReplace)
}

// Reset discards the whole session, ledger included.
func (s *QuizService) Reset() Carrier {
	return s.store.Clear()
}

// Recover rebuilds what the client needs after a reload. When the session
// points past the end of a pool that shrank since the draw, the question is
// reported stale and the session is sent back to the wheel; in that case the
// returned carrier is non-nil.
func (s *QuizService) Recover(ctx context.Context, current model.SessionState) (Recovery, *Carrier, error) {
	rec := Recovery{Session: current}
	if !current.InQuestion() {
		return rec, nil, nil
	}

	cat, diff, idx := *current.Category, *current.Difficulty, *current.QuestionIndex
	pool, err := s.pools.GetPool(ctx, cat, diff)
	if err != nil {
		return Recovery{}, nil, err
	}

	if idx >= len(pool) {
		s.log.Warn().
			Str("category", cat).
			Str("difficulty", string(diff)).
			Int("index", idx).
			Int("pool_size", len(pool)).
			Msg("Session points past the end of its pool")

		next := current.Clone()
		next.ToWheel()
		carrier, err := s.store.Write(next)
		if err != nil {
			return Recovery{}, nil, fmt.Errorf("write session: %w", err)
		}
		return Recovery{Session: next, StaleQuestion: true}, &carrier, nil
	}

	q := pool[idx]
	rec.Question = &q
	rec.CorrectLetter = q.CorrectLetter()

	duration := model.DefaultQuestionSeconds
	if current.TimerDuration != nil {
		duration = *current.TimerDuration
	}
	left, started := RemainingSeconds(current.TimerStartedAt, duration, s.store.Now())
	if !started {
		left = duration
	}
	rec.Phase = RecoverPhase(started, left)
	rec.SecondsLeft = &left

	total := len(pool)
	remaining := total - countInRange(current.UsedQuestions.Indices(cat, diff), total)
	rec.TotalInPool = &total
	rec.Remaining = &remaining
	return rec, nil, nil
}

func wheelPatch() model.SessionPatch {
	return model.SessionPatch{
		State:          model.Some(model.AppStateWheel),
		Category:       model.Null[string](),
		Difficulty:     model.Null[model.Difficulty](),
		QuestionIndex:  model.Null[int](),
		TimerStartedAt: model.Null[int64](),
		TimerDuration:  model.Null[int](),
	}
}

func countInRange(indices []int, size int) int {
	n := 0
	for _, i := range indices {
		if i >= 0 && i < size {
			n++
		}
	}
	return n
}
