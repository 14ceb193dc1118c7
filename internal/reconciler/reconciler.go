package reconciler

import (
	"context"
	"time"

	"whalegate/internal/chat"
	"whalegate/internal/ledger"

	"go.uber.org/zap"
)

// Feed delivers membership transitions into the gated chat.
type Feed interface {
	PollJoins(ctx context.Context) ([]chat.JoinEvent, error)
}

// Reconciler links channel join events back to verification records by
// temporal proximity. Only an unambiguous single candidate is linked;
// with several pending records in the window no guess is made and the
// records stay visible as unlinked in the admin listing.
type Reconciler struct {
	ledger ledger.Ledger
	feed   Feed
	window time.Duration
	log    *zap.Logger
}

func New(led ledger.Ledger, feed Feed, window time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{ledger: led, feed: feed, window: window, log: log}
}

// Run polls the feed until ctx is cancelled. Transport failures and
// per-event processing failures are logged and never stop the loop.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := r.feed.PollJoins(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Warn("join feed poll failed", zap.Error(err))
				continue
			}
			for _, ev := range events {
				if err := r.ProcessJoin(ctx, ev); err != nil {
					r.log.Warn("join event processing failed",
						zap.Int64("external_id", ev.ExternalID),
						zap.Error(err))
				}
			}
		}
	}
}

// ProcessJoin attempts to link one join event to a pending record.
// Only records issued before the join (within the trailing window) are
// candidates; long-poll lag means a record can postdate the join it has
// nothing to do with.
func (r *Reconciler) ProcessJoin(ctx context.Context, ev chat.JoinEvent) error {
	pending, err := r.ledger.PendingBetween(ctx, ev.JoinedAt.Add(-r.window), ev.JoinedAt)
	if err != nil {
		return err
	}

	switch len(pending) {
	case 0:
		// Organic join, or the record aged out of the window.
		r.log.Info("join event with no pending record",
			zap.Int64("external_id", ev.ExternalID),
			zap.String("username", ev.Username))
		return nil
	case 1:
		linked, err := r.ledger.LinkIdentity(ctx, pending[0].ID, ev.ExternalID, ev.DisplayName, ev.JoinedAt)
		if err != nil {
			return err
		}
		if !linked {
			r.log.Warn("record was linked concurrently",
				zap.Uint("record_id", pending[0].ID),
				zap.Int64("external_id", ev.ExternalID))
			return nil
		}
		r.log.Info("join event linked",
			zap.Uint("record_id", pending[0].ID),
			zap.String("wallet", pending[0].WalletAddress),
			zap.Int64("external_id", ev.ExternalID))
		return nil
	default:
		// Ambiguous: the time-window heuristic can't tell which wallet
		// this identity belongs to. Leave all candidates unlinked for
		// manual reconciliation.
		r.log.Warn("ambiguous join event, leaving records unlinked",
			zap.Int64("external_id", ev.ExternalID),
			zap.Int("candidates", len(pending)))
		return nil
	}
}
