package worker

import (
	"context"
	"errors"
	"time"

	"proconnect/internal/platform/queue"

	"go.uber.org/zap"
)

type ReminderSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.ReminderJob, error)
}

type ReminderProcessor interface {
	ProcessReminder(ctx context.Context, job queue.ReminderJob) (int64, error)
}

// ReminderWorker drains the reminder queue one job at a time.
type ReminderWorker struct {
	source    ReminderSource
	processor ReminderProcessor
	log       *zap.Logger

	popTimeout time.Duration
	retryDelay time.Duration
}

func NewReminderWorker(source ReminderSource, processor ReminderProcessor, log *zap.Logger) *ReminderWorker {
	return &ReminderWorker{
		source:     source,
		processor:  processor,
		log:        log.Named("reminder_worker"),
		popTimeout: 5 * time.Second,
		retryDelay: 5 * time.Second,
	}
}

// Start blocks until ctx is cancelled.
func (w *ReminderWorker) Start(ctx context.Context) {
	w.log.Info("reminder worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("reminder worker stopping")
			return
		default:
		}

		job, err := w.source.Pop(ctx, w.popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.log.Error("failed to pop reminder job", zap.Error(err))
			w.sleep(ctx, w.retryDelay) // Wait before retrying on other errors
			continue
		}
		w.process(ctx, *job)
	}
}

func (w *ReminderWorker) process(ctx context.Context, job queue.ReminderJob) {
	start := time.Now()
	w.log.Info("processing reminder job", zap.String("job_id", job.JobID))
	count, err := w.processor.ProcessReminder(ctx, job)
	if err != nil {
		w.log.Error("reminder job failed", zap.String("job_id", job.JobID), zap.Error(err))
		return
	}
	w.log.Info("reminder job done",
		zap.String("job_id", job.JobID), zap.Int64("notified", count), zap.Duration("took", time.Since(start)))
}

func (w *ReminderWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
