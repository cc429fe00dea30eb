// Package poller periodically reconciles the repositories with the server.
// Clean caches take the fast path, so a tick only costs requests for
// collections that are dirty or were never fetched.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/micro-ha/entitycache/internal/repository"
)

const DefaultInterval = 30 * time.Second

type Poller struct {
	caches    []repository.Cache
	interval  time.Duration
	refreshCh chan struct{}
	logger    *slog.Logger
}

func New(caches []repository.Cache, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{caches: caches, interval: interval, refreshCh: make(chan struct{}, 1), logger: logger}
}

// TriggerRefresh asks the loop to refetch every collection now. Calls made
// while a trigger is pending coalesce into one cycle.
func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(p.interval)
		refresh := false
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.refreshCh:
			timer.Stop()
			refresh = true
		case <-timer.C:
		}
		p.ReconcileOnce(ctx, refresh)
	}
}

// ReconcileOnce syncs every cache once and returns the number that failed.
func (p *Poller) ReconcileOnce(ctx context.Context, refresh bool) int {
	failed := 0
	for _, cache := range p.caches {
		if ctx.Err() != nil {
			return failed
		}
		outcome, err := cache.Sync(ctx, refresh)
		if err != nil {
			failed++
			p.logger.Error("reconcile failed", "collection", cache.Name(), "err", err)
			continue
		}
		if outcome == repository.OutcomeFresh {
			p.logger.Debug("collection reconciled", "collection", cache.Name(), "records", cache.Len())
		}
	}
	return failed
}
