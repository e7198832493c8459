package service

import (
	"time"

	"github.com/stemsi/quizspin-backend/internal/model"
)

// Codec turns a SessionState into a carrier token and back.
type Codec interface {
	Encode(state model.SessionState, issuedAt time.Time) (string, error)
	Decode(token string, now time.Time) (model.SessionState, DecodeStatus)
	MaxAge() time.Duration
}

// MergeMode selects how usedQuestions is combined on a partial write.
type MergeMode int

const (
	// MergeUnion unions used indices per pool so concurrent tabs never lose a mark.
	MergeUnion MergeMode = iota
	// MergeReplace substitutes the whole ledger; the only way to retract an index.
	MergeReplace
)

// Carrier is the instruction for the transport: set Token for MaxAge, or
// remove the carrier when MaxAge is negative.
type Carrier struct {
	Token  string
	MaxAge time.Duration
}

// Remove reports whether the carrier must be deleted client-side.
func (c Carrier) Remove() bool {
	return c.MaxAge < 0
}

// SessionStore owns read and merge-write of the client's SessionState.
type SessionStore struct {
	codec Codec
	now   func() time.Time
}

// NewSessionStore creates a SessionStore on top of codec.
func NewSessionStore(codec Codec) *SessionStore {
	return &SessionStore{codec: codec, now: time.Now}
}

// WithClock returns a copy of the store that reads time from now.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	return &SessionStore{codec: s.codec, now: now}
}

// Now returns the store's current time.
func (s *SessionStore) Now() time.Time {
	return s.now()
}

// Read decodes token. Absent or invalid tokens yield a fresh default state;
// the status lets the transport drop an invalid carrier.
func (s *SessionStore) Read(token string) (model.SessionState, DecodeStatus) {
	return s.codec.Decode(token, s.now())
}

// Write signs state into a new carrier with a fresh max-age.
func (s *SessionStore) Write(state model.SessionState) (Carrier, error) {
	token, err := s.codec.Encode(state, s.now())
	if err != nil {
		return Carrier{}, err
	}
	return Carrier{Token: token, MaxAge: s.codec.MaxAge()}, nil
}

// Clear returns the instruction that removes the carrier.
func (s *SessionStore) Clear() Carrier {
	return Carrier{MaxAge: -1}
}

// MergeWrite applies patch to current and issues a new carrier.
func (s *SessionStore) MergeWrite(current model.SessionState, patch model.SessionPatch, mode MergeMode) (model.SessionState, Carrier, error) {
	merged := Merge(current, patch, mode)
	carrier, err := s.Write(merged)
	if err != nil {
		return model.SessionState{}, Carrier{}, err
	}
	return merged, carrier, nil
}

// Merge is the pure merge step: a shallow overwrite for scalar fields and,
// for usedQuestions, a union or a wholesale replacement depending on mode.
func Merge(current model.SessionState, patch model.SessionPatch, mode MergeMode) model.SessionState {
	out := current.Clone()
	patch.ApplyScalars(&out)

	switch mode {
	case MergeReplace:
		if patch.UsedQuestions != nil {
			out.UsedQuestions = model.UnionUsed(nil, patch.UsedQuestions)
		}
	default:
		out.UsedQuestions = model.UnionUsed(out.UsedQuestions, patch.UsedQuestions)
	}

	out.Normalize()
	return out
}
