package service

import (
	"context"
	"io"
	"time"

	"proconnect/internal/platform/queue"
)

// Locker guards a critical section across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type ReminderEnqueuer interface {
	Push(ctx context.Context, job queue.ReminderJob) error
}

// FileStore persists generated files under slash separated relative paths.
type FileStore interface {
	Save(rel string, data []byte) error
	Open(rel string) (io.ReadCloser, error)
	Remove(rel string) error
}
