package manager

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler periodically calls Engine.ReconcileOnce so that servers whose
// process died on their own are reported as stopped.
type Reconciler struct {
	e        *Engine
	interval time.Duration
	log      *slog.Logger
}

func NewReconciler(e *Engine, interval time.Duration) *Reconciler {
	return &Reconciler{e: e, interval: interval, log: e.log}
}

// Run blocks until ctx is done. A non-positive interval returns immediately.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			lost, err := r.e.ReconcileOnce(ctx)
			if err != nil {
				r.log.Error("reconcile failed", "servers", lost, "error", err)
				continue
			}
			if len(lost) > 0 {
				r.log.Info("reconciled lost servers", "servers", lost)
			}
		}
	}
}
