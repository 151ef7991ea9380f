package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderJob asks the reminder worker to notify every active user.
type ReminderJob struct {
	JobID       string    `json:"job_id"`
	Message     string    `json:"message"`
	RequestedBy string    `json:"requested_by"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

type ReminderQueue struct {
	rdb  *redis.Client
	name string
}

func NewReminderQueue(rdb *redis.Client, name string) *ReminderQueue {
	return &ReminderQueue{rdb: rdb, name: name}
}

func (q *ReminderQueue) Name() string { return q.name }

func (q *ReminderQueue) Push(ctx context.Context, job ReminderJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode reminder job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, raw).Err(); err != nil {
		return fmt.Errorf("push reminder job: %w", err)
	}
	return nil
}

// ErrEmpty is returned by Pop when the timeout passes without a job.
var ErrEmpty = errors.New("queue empty")

// Pop blocks up to timeout for the next job.
func (q *ReminderQueue) Pop(ctx context.Context, timeout time.Duration) (*ReminderJob, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		return nil, ErrEmpty
	}
	var job ReminderJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode reminder job: %w", err)
	}
	return &job, nil
}
