package server

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notesync/internal/logging"
)

type tombstonePurger interface {
	PurgeTombstones(ctx context.Context, retention time.Duration) (int64, error)
}

type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Purger periodically removes tombstones older than the retention window
// along with expired refresh tokens.
type Purger struct {
	notes     tombstonePurger
	tokens    tokenPurger
	retention time.Duration
	interval  time.Duration
	log       logging.Logger
}

func NewPurger(notes tombstonePurger, tokens tokenPurger, retention time.Duration, log logging.Logger) *Purger {
	return &Purger{
		notes:     notes,
		tokens:    tokens,
		retention: retention,
		interval:  PurgeInterval(retention),
		log:       log.With("module", "purger"),
	}
}

// PurgeInterval runs hourly, or at half the retention for short windows,
// but never more often than once a minute.
func PurgeInterval(retention time.Duration) time.Duration {
	interval := min(time.Hour, retention/2)
	return max(interval, time.Minute)
}

func (p *Purger) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PurgeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce runs one purge. Failures are logged and retried on the next tick.
func (p *Purger) PurgeOnce(ctx context.Context) {
	if n, err := p.notes.PurgeTombstones(ctx, p.retention); err != nil {
		p.log.Error(ctx, "purging tombstones", "error", err)
	} else if n > 0 {
		p.log.Info(ctx, "tombstones purged", "count", n)
	}

	if n, err := p.tokens.PurgeExpiredTokens(ctx); err != nil {
		p.log.Error(ctx, "purging refresh tokens", "error", err)
	} else if n > 0 {
		p.log.Info(ctx, "expired refresh tokens purged", "count", n)
	}
}
