package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/bidware/bidware/internal/domain/listing"
)

// DefaultInterval is the sweep cadence.
const DefaultInterval = 30 * time.Second

// Sweeper advances listings whose clock-based deadlines have passed. One
// instance runs per deployment; every step is an idempotent status
// compare-and-set, so an overlapping or replayed sweep is harmless.
type Sweeper struct {
	listings listing.Repository
	interval time.Duration

	storeAttempts int
	now           func() time.Time
	logger        zerolog.Logger
}

// Option configures the sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a sweeper.
func New(listings listing.Repository, logger zerolog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		listings:      listings,
		interval:      DefaultInterval,
		storeAttempts: 3,
		now:           time.Now,
		logger:        logger.With().Str("service", "sweeper").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	applied, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if applied > 0 {
		s.logger.Info().Int("transitions", applied).Msg("sweep applied transitions")
	}
}

// Sweep enumerates all non-terminal listings and applies every transition due
// at the current time. A store error on one listing is logged and skipped; the
// rest of the sweep continues and the next interval retries in full. Returns
// the number of transitions applied.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	var ls []*listing.Listing
	err := retry.Do(ctx, s.storeBackoff(), func(ctx context.Context) error {
		var err error
		ls, err = s.listings.ListActive(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		sweepErrors.Inc()
		return 0, err
	}

	now := s.now().UTC()
	applied := 0
	for _, l := range ls {
		from, to, reason, due := dueTransition(l, now)
		if !due {
			continue
		}

		var done bool
		err := retry.Do(ctx, s.storeBackoff(), func(ctx context.Context) error {
			var err error
			done, err = s.listings.CompareAndSetStatus(ctx, l.ID, from, to, reason)
			if err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			listingsSkipped.Inc()
			s.logger.Warn().Err(err).
				Str("listing_id", l.ID.String()).
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("skipping listing after store error")
			continue
		}
		if done {
			applied++
			transitionsApplied.WithLabelValues(string(to)).Inc()
			s.logger.Info().
				Str("listing_id", l.ID.String()).
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("listing transitioned")
		}
	}

	sweepsTotal.Inc()
	return applied, nil
}

func (s *Sweeper) storeBackoff() retry.Backoff {
	return retry.WithMaxRetries(uint64(s.storeAttempts-1), retry.NewConstant(100*time.Millisecond))
}

// dueTransition evaluates the clock-triggered rows of the transition table.
// Unpaid approved listings are rejected once the start time passes; the start
// time doubles as the payment grace deadline.
func dueTransition(l *listing.Listing, now time.Time) (from, to listing.Status, reason string, due bool) {
	switch l.Status {
	case listing.StatusApproved:
		if !now.Before(l.StartAt) {
			return listing.StatusApproved, listing.StatusRejected, listing.AutoRejectReason, true
		}
	case listing.StatusWaitingForStart:
		if !now.Before(l.StartAt) {
			return listing.StatusWaitingForStart, listing.StatusInAuction, "", true
		}
	case listing.StatusInAuction:
		if !now.Before(l.EndAt) {
			return listing.StatusInAuction, listing.StatusCompleted, "", true
		}
	}
	return "", "", "", false
}
