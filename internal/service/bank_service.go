package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/model"
	"github.com/stemsi/quizspin-backend/internal/repository"
	"golang.org/x/sync/singleflight"
)

// ErrBankUnavailable is returned when neither the upstream nor the fallback
// source could produce a bank and nothing was loaded before.
var ErrBankUnavailable = errors.New("question bank unavailable")

// sharedLoadTimeout bounds a bank load shared by several callers. The load
// does not inherit any one caller's cancellation.
const sharedLoadTimeout = 30 * time.Second

// PoolProvider is the read-only view of the bank the quiz flow depends on.
type PoolProvider interface {
	GetPool(ctx context.Context, category string, difficulty model.Difficulty) ([]model.Question, error)
}

// bankSnapshot is immutable once published.
type bankSnapshot struct {
	bank     model.Bank
	source   string
	loadedAt time.Time
}

// BankService loads the question bank from an upstream source with a local
// fallback, shares it through an optional Redis cache, and keeps the current
// snapshot in memory. Snapshots are swapped wholesale, never edited.
type BankService struct {
	upstream repository.BankSource
	fallback repository.BankSource
	cache    *repository.BankCache
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time

	sf      singleflight.Group
	current atomic.Pointer[bankSnapshot]
}

// NewBankService creates a BankService. upstream, fallback and cache may be nil.
func NewBankService(upstream, fallback repository.BankSource, cache *repository.BankCache, ttl time.Duration, log zerolog.Logger) *BankService {
	return &BankService{
		upstream: upstream,
		fallback: fallback,
		cache:    cache,
		ttl:      ttl,
		log:      log.With().Str("component", "bank_service").Logger(),
		now:      time.Now,
	}
}

// Bank returns the current bank, loading it when the snapshot is missing or
// older than the TTL. A stale snapshot is served if every source fails.
func (s *BankService) Bank(ctx context.Context) (model.Bank, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.bank, nil
}

// GetPool returns the ordered pool for (category, difficulty); an unknown
// pair yields an empty pool, not an error.
func (s *BankService) GetPool(ctx context.Context, category string, difficulty model.Difficulty) ([]model.Question, error) {
	bank, err := s.Bank(ctx)
	if err != nil {
		return nil, err
	}
	return bank.Pool(category, difficulty), nil
}

// Summary returns pool sizes and time limits for the wheel.
func (s *BankService) Summary(ctx context.Context) (model.BankSummary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return model.BankSummary{}, err
	}
	sum := snap.bank.Summarize()
	sum.LoadedAt = snap.loadedAt
	sum.Source = snap.source
	return sum, nil
}

// Refresh reloads from the sources, bypassing the shared cache, and
// republishes the result.
func (s *BankService) Refresh(ctx context.Context) error {
	_, err := s.shared(ctx, "refresh", func(ctx context.Context) (*bankSnapshot, error) {
		snap, err := s.loadFromSources(ctx)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, snap, true)
		return snap, nil
	})
	return err
}

func (s *BankService) snapshot(ctx context.Context) (*bankSnapshot, error) {
	if snap := s.current.Load(); snap != nil && s.fresh(snap) {
		return snap, nil
	}

	return s.shared(ctx, "load", func(ctx context.Context) (*bankSnapshot, error) {
		// Another caller may have published while we waited.
		if snap := s.current.Load(); snap != nil && s.fresh(snap) {
			return snap, nil
		}
		return s.load(ctx)
	})
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from the caller with its own deadline; each caller stops waiting
// when its own ctx is done.
func (s *BankService) shared(ctx context.Context, key string, fn func(context.Context) (*bankSnapshot, error)) (*bankSnapshot, error) {
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		return fn(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*bankSnapshot), nil
	}
}

func (s *BankService) fresh(snap *bankSnapshot) bool {
	return s.ttl <= 0 || s.now().Sub(snap.loadedAt) < s.ttl
}

func (s *BankService) load(ctx context.Context) (*bankSnapshot, error) {
	if s.cache != nil {
		bank, source, loadedAt, err := s.cache.Get(ctx)
		switch {
		case err == nil && s.now().Sub(loadedAt) < s.ttl:
			snap := &bankSnapshot{bank: bank, source: source, loadedAt: loadedAt}
			s.publish(ctx, snap, false)
			return snap, nil
		case err != nil && !errors.Is(err, repository.ErrCacheMiss):
			s.log.Warn().Err(err).Msg("Bank cache read failed")
		}
	}

	snap, err := s.loadFromSources(ctx)
	if err != nil {
		if stale := s.current.Load(); stale != nil {
			s.log.Warn().Err(err).
				Time("loaded_at", stale.loadedAt).
				Msg("Serving stale bank")
			return stale, nil
		}
		return nil, err
	}
	s.publish(ctx, snap, true)
	return snap, nil
}

func (s *BankService) loadFromSources(ctx context.Context) (*bankSnapshot, error) {
	var errs []error
	for _, src := range []repository.BankSource{s.upstream, s.fallback} {
		if src == nil {
			continue
		}
		bank, err := src.LoadBank(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("source", src.Name()).Msg("Bank source failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		return &bankSnapshot{bank: bank, source: src.Name(), loadedAt: s.now()}, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrBankUnavailable, errors.Join(errs...))
}

func (s *BankService) publish(ctx context.Context, snap *bankSnapshot, writeCache bool) {
	s.current.Store(snap)
	s.log.Info().
		Str("source", snap.source).
		Int("categories", len(snap.bank)).
		Msg("Bank loaded")

	if !writeCache || s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, snap.bank, snap.source, snap.loadedAt, s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("Bank cache write failed")
	}
}
