package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type PhaseSyncer interface {
	SyncPhase(ctx context.Context) (bool, error)
}

// PhaseWorker keeps the stored contest phase in step with the calendar.
type PhaseWorker struct {
	syncer PhaseSyncer
	every  time.Duration
	log    *zap.Logger
}

func NewPhaseWorker(syncer PhaseSyncer, every time.Duration, log *zap.Logger) *PhaseWorker {
	if every <= 0 {
		every = time.Minute
	}
	return &PhaseWorker{syncer: syncer, every: every, log: log.Named("phase_worker")}
}

// Start syncs once immediately, then on every tick until ctx is cancelled.
func (w *PhaseWorker) Start(ctx context.Context) {
	w.log.Info("phase worker started", zap.Duration("every", w.every))
	w.tick(ctx)

	ticker := time.NewTicker(w.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("phase worker stopping")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PhaseWorker) tick(ctx context.Context) {
	changed, err := w.syncer.SyncPhase(ctx)
	if err != nil {
		w.log.Error("phase sync failed", zap.Error(err))
		return
	}
	if changed {
		w.log.Info("contest phase advanced")
	}
}
