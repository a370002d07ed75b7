package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"letter-service/internal/clock"
	"letter-service/internal/events"
	"letter-service/internal/observability"
	"letter-service/internal/repositories"
)

// RevealReconciler discloses the sender of anonymous, opened letters
// whose reveal deadline has passed. Status and sender_revealed_at are set
// in a single write; once set, the letter falls out of the due query, so
// the reconciler is idempotent by construction. Its predicate is disjoint
// from the unlock reconciler's, so the two loops never contend.
type RevealReconciler struct {
	letters repositories.LetterRepository
	clock   clock.Clock
	sink    EventSink
	cfg     ReconcilerConfig
}

// NewRevealReconciler builds a RevealReconciler.
func NewRevealReconciler(letters repositories.LetterRepository, clk clock.Clock, sink EventSink, cfg ReconcilerConfig) *RevealReconciler {
	cfg.applyDefaults()
	return &RevealReconciler{letters: letters, clock: clk, sink: sink, cfg: cfg}
}

// Run ticks on a fixed interval until the context is cancelled.
func (r *RevealReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.cfg.Interval).Msg("reveal reconciler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reveal reconciler stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick processes one batch of due reveals.
func (r *RevealReconciler) Tick(ctx context.Context) {
	ctx, span := otel.Tracer("lifecycle").Start(ctx, "RevealReconciler.Tick")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TickTimeout)
	defer cancel()

	observability.IncReconcilerTick("reveal")

	now := r.clock.Now()
	due, err := r.letters.DueForReveal(ctx, now, r.cfg.BatchSize)
	if err != nil {
		observability.IncReconcilerError("reveal")
		log.Error().Err(err).Msg("reveal reconciler: due query failed")
		return
	}

	for _, letter := range due {
		if _, err := NextStatus(letter, ActionReveal, "", now); err != nil {
			observability.IncReconcilerError("reveal")
			log.Error().Err(err).Str("letter_id", letter.ID).Msg("reveal reconciler: transition rejected")
			continue
		}
		revealed, err := r.letters.MarkRevealed(ctx, letter.ID, now)
		if err != nil {
			observability.IncReconcilerError("reveal")
			log.Error().Err(err).Str("letter_id", letter.ID).Msg("reveal reconciler: mark failed")
			continue
		}
		if !revealed {
			continue
		}
		observability.IncReconcilerAdvanced("reveal")
		r.sink.Emit(ctx, events.KeySenderRevealed, events.TypeSenderRevealed, events.SenderRevealed{
			LetterID:   letter.ID,
			SenderID:   letter.SenderID,
			RevealedAt: now,
		})
	}
}
