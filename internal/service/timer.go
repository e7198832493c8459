package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/quizspin-backend/internal/model"
)

// ErrInvalidTransition is returned for a phase event the current phase does not accept.
var ErrInvalidTransition = errors.New("invalid phase transition")

// RemainingSeconds reconciles a persisted countdown against the wall clock:
// max(0, duration - floor((now - startedAt) / 1s)). started is false when the
// countdown never began, in which case the question is still in the ready phase.
// A start time in the future counts as zero elapsed.
func RemainingSeconds(startedAt *int64, duration int, now time.Time) (secondsLeft int, started bool) {
	if startedAt == nil {
		return 0, false
	}
	elapsedMs := now.UnixMilli() - *startedAt
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	left := int64(duration) - elapsedMs/1000
	if left < 0 {
		left = 0
	}
	return int(left), true
}

// RecoverPhase maps a reconciled timer onto the phase the client resumes in.
// A countdown that ran out while the client was away resumes at timeout,
// never as a zero-length running timer.
func RecoverPhase(started bool, secondsLeft int) model.Phase {
	switch {
	case !started:
		return model.PhaseReady
	case secondsLeft > 0:
		return model.PhaseRunning
	default:
		return model.PhaseTimeout
	}
}

// AdvancePhase applies ev to p. The answer is only reachable from timeout.
func AdvancePhase(p model.Phase, ev model.PhaseEvent) (model.Phase, error) {
	switch {
	case p == model.PhaseReady && ev == model.EventStart:
		return model.PhaseRunning, nil
	case p == model.PhaseRunning && ev == model.EventExpire:
		return model.PhaseTimeout, nil
	case p == model.PhaseTimeout && ev == model.EventReveal:
		return model.PhaseAnswer, nil
	}
	return p, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, p)
}
