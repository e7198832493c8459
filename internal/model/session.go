package model

import "slices"

// AppState is the screen the client should show.
type AppState string

const (
	AppStateWheel    AppState = "wheel"
	AppStateQuestion AppState = "question"
)

// Difficulty is one of the three fixed tiers partitioning a category's pool.
type Difficulty string

const (
	DifficultyReceh  Difficulty = "Receh"
	DifficultySedang Difficulty = "Sedang"
	DifficultySulit  Difficulty = "Sulit"
)

// Difficulties lists every tier in display order.
var Difficulties = []Difficulty{DifficultyReceh, DifficultySedang, DifficultySulit}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	return slices.Contains(Difficulties, d)
}

// UsedQuestions maps category -> difficulty -> served pool indices.
// Each index list is treated as a set.
type UsedQuestions map[string]map[Difficulty][]int

// SessionState is the whole client session carried in the signed cookie.
type SessionState struct {
	State          AppState      `json:"state"`
	Category       *string       `json:"category"`
	Difficulty     *Difficulty   `json:"difficulty"`
	QuestionIndex  *int          `json:"questionIndex"`
	TimerStartedAt *int64        `json:"timerStartedAt"` // Unix ms; nil until the countdown begins
	TimerDuration  *int          `json:"timerDuration"`  // seconds
	UsedQuestions  UsedQuestions `json:"usedQuestions"`
}

// DefaultSession returns the state of a client seen for the first time.
func DefaultSession() SessionState {
	return SessionState{
		State:         AppStateWheel,
		UsedQuestions: UsedQuestions{},
	}
}

// InQuestion reports whether the session points at a concrete question.
func (s SessionState) InQuestion() bool {
	return s.State == AppStateQuestion && s.Category != nil && s.Difficulty != nil && s.QuestionIndex != nil
}

// Clone returns a deep copy of s.
func (s SessionState) Clone() SessionState {
	out := s
	out.Category = clonePtr(s.Category)
	out.Difficulty = clonePtr(s.Difficulty)
	out.QuestionIndex = clonePtr(s.QuestionIndex)
	out.TimerStartedAt = clonePtr(s.TimerStartedAt)
	out.TimerDuration = clonePtr(s.TimerDuration)
	out.UsedQuestions = s.UsedQuestions.Clone()
	return out
}

// Normalize repairs a decoded state: unknown screens fall back to the wheel
// and a null ledger becomes an empty one.
func (s *SessionState) Normalize() {
	if s.State != AppStateQuestion {
		s.State = AppStateWheel
	}
	if s.UsedQuestions == nil {
		s.UsedQuestions = UsedQuestions{}
	}
}

// ToWheel clears the question pointer and timer, keeping the ledger.
func (s *SessionState) ToWheel() {
	s.State = AppStateWheel
	s.Category = nil
	s.Difficulty = nil
	s.QuestionIndex = nil
	s.TimerStartedAt = nil
	s.TimerDuration = nil
}

// Indices returns a copy of the used set for one pool.
func (u UsedQuestions) Indices(category string, difficulty Difficulty) []int {
	return slices.Clone(u[category][difficulty])
}

// Set replaces the used set for one pool.
func (u UsedQuestions) Set(category string, difficulty Difficulty, indices []int) {
	if u[category] == nil {
		u[category] = map[Difficulty][]int{}
	}
	u[category][difficulty] = dedupe(indices)
}

// Clone returns a deep copy of u; a nil ledger clones to an empty one.
func (u UsedQuestions) Clone() UsedQuestions {
	out := make(UsedQuestions, len(u))
	for cat, diffs := range u {
		inner := make(map[Difficulty][]int, len(diffs))
		for diff, idx := range diffs {
			inner[diff] = slices.Clone(idx)
		}
		out[cat] = inner
	}
	return out
}

// UnionUsed merges incoming into base per (category, difficulty) without
// duplicates. Neither argument is modified.
func UnionUsed(base, incoming UsedQuestions) UsedQuestions {
	out := base.Clone()
	for cat, diffs := range incoming {
		if out[cat] == nil {
			out[cat] = map[Difficulty][]int{}
		}
		for diff, idx := range diffs {
			merged := append(slices.Clone(out[cat][diff]), idx...)
			out[cat][diff] = dedupe(merged)
		}
	}
	return out
}

// dedupe keeps the first occurrence of every index and never returns nil.
func dedupe(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SessionPatch is a partial SessionState. Absent fields keep their previous
// value; fields sent as null clear it.
type SessionPatch struct {
	State          Optional[AppState]   `json:"state" binding:"omitempty,oneof=wheel question"`
	Category       Optional[string]     `json:"category" binding:"omitempty,min=1,max=100"`
	Difficulty     Optional[Difficulty] `json:"difficulty" binding:"omitempty,oneof=Receh Sedang Sulit"`
	QuestionIndex  Optional[int]        `json:"questionIndex" binding:"omitempty,min=0"`
	TimerStartedAt Optional[int64]      `json:"timerStartedAt" binding:"omitempty,min=0"`
	TimerDuration  Optional[int]        `json:"timerDuration" binding:"omitempty,min=1"`
	UsedQuestions  UsedQuestions        `json:"usedQuestions" binding:"omitempty,dive,keys,required,endkeys,dive,keys,oneof=Receh Sedang Sulit,endkeys,dive,min=0"`
}

// ApplyScalars shallow-overwrites every non-ledger field present in p.
func (p SessionPatch) ApplyScalars(s *SessionState) {
	if p.State.Set && p.State.Value != nil {
		s.State = *p.State.Value
	}
	p.Category.ApplyTo(&s.Category)
	p.Difficulty.ApplyTo(&s.Difficulty)
	p.QuestionIndex.ApplyTo(&s.QuestionIndex)
	p.TimerStartedAt.ApplyTo(&s.TimerStartedAt)
	p.TimerDuration.ApplyTo(&s.TimerDuration)
}
