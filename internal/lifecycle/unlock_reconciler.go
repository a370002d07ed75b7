package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"letter-service/internal/clock"
	"letter-service/internal/events"
	"letter-service/internal/models"
	"letter-service/internal/observability"
	"letter-service/internal/repositories"
)

// EventSink receives domain events from the reconcilers and coordinators.
type EventSink interface {
	Emit(ctx context.Context, routingKey, eventType string, payload any)
}

// ReconcilerConfig bounds a reconciler's work per tick.
type ReconcilerConfig struct {
	Interval    time.Duration
	BatchSize   int
	TickTimeout time.Duration
}

func (c *ReconcilerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = 30 * time.Second
	}
}

// UnlockReconciler advances sealed letters whose unlock time has passed
// to ready. It is idempotent: advanced letters no longer match the due
// query, so re-running a tick after a partial failure is safe.
type UnlockReconciler struct {
	letters repositories.LetterRepository
	clock   clock.Clock
	sink    EventSink
	cfg     ReconcilerConfig
}

// NewUnlockReconciler builds an UnlockReconciler.
func NewUnlockReconciler(letters repositories.LetterRepository, clk clock.Clock, sink EventSink, cfg ReconcilerConfig) *UnlockReconciler {
	cfg.applyDefaults()
	return &UnlockReconciler{letters: letters, clock: clk, sink: sink, cfg: cfg}
}

// Run ticks on a fixed interval until the context is cancelled.
func (r *UnlockReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.cfg.Interval).Msg("unlock reconciler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("unlock reconciler stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick processes one batch of due letters. Individual failures are
// logged and skipped; the next tick retries them since the predicate
// still matches.
func (r *UnlockReconciler) Tick(ctx context.Context) {
	ctx, span := otel.Tracer("lifecycle").Start(ctx, "UnlockReconciler.Tick")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TickTimeout)
	defer cancel()

	observability.IncReconcilerTick("unlock")

	now := r.clock.Now()
	due, err := r.letters.DueForUnlock(ctx, now, r.cfg.BatchSize)
	if err != nil {
		observability.IncReconcilerError("unlock")
		log.Error().Err(err).Msg("unlock reconciler: due query failed")
		return
	}

	for _, letter := range due {
		if _, err := NextStatus(letter, ActionUnlock, "", now); err != nil {
			observability.IncReconcilerError("unlock")
			log.Error().Err(err).Str("letter_id", letter.ID).Msg("unlock reconciler: transition rejected")
			continue
		}
		advanced, err := r.letters.AdvanceStatus(ctx, letter.ID, models.StatusSealed, models.StatusReady)
		if err != nil {
			observability.IncReconcilerError("unlock")
			log.Error().Err(err).Str("letter_id", letter.ID).Msg("unlock reconciler: advance failed")
			continue
		}
		if !advanced {
			// Lost the race to an open or a withdrawal; nothing to do.
			continue
		}
		observability.IncReconcilerAdvanced("unlock")
		r.sink.Emit(ctx, events.KeyLetterReady, events.TypeLetterBecameReady, events.LetterBecameReady{
			LetterID:    letter.ID,
			RecipientID: letter.RecipientID,
			UnlocksAt:   letter.UnlocksAt,
		})
	}
}
