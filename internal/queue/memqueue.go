package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memItem struct {
	id         string
	msg        Message
	status     string
	attempts   int
	stallCount int
	runAt      time.Time
	leaseUntil time.Time
	lockedBy   string
	lastError  string
	enqueued   time.Time
	finished   time.Time
}

// MemQueue implements Queue in process memory with the same retry, lease, and
// stall semantics as PGQueue. It is intended for development and test
// environments where Postgres is not available.
type MemQueue struct {
	mu    sync.Mutex
	items []*memItem
	cfg   Config

	// Now is overridable so tests can control backoff and lease expiry.
	Now func() time.Time
}

// NewMemQueue constructs an in-memory queue with the given tuning.
func NewMemQueue(cfg Config) *MemQueue {
	return &MemQueue{cfg: cfg.withDefaults(), Now: time.Now}
}

func (q *MemQueue) Enqueue(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.Now()
	q.items = append(q.items, &memItem{
		id:       uuid.NewString(),
		msg:      msg,
		status:   stateQueued,
		runAt:    now,
		enqueued: now,
	})
	return nil
}

func (q *MemQueue) Claim(ctx context.Context, workerID string) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.Now()
	for _, it := range q.items {
		if it.status != stateQueued || it.runAt.After(now) {
			continue
		}
		it.status = stateRunning
		it.attempts++
		it.lockedBy = workerID
		it.leaseUntil = now.Add(q.cfg.LockDuration)
		return &Delivery{ID: it.id, Message: it.msg, Attempt: it.attempts}, nil
	}
	return nil, ErrEmpty
}

func (q *MemQueue) Heartbeat(ctx context.Context, deliveryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if it := q.find(deliveryID); it != nil && it.status == stateRunning {
		it.leaseUntil = q.Now().Add(q.cfg.LockDuration)
	}
	return nil
}

func (q *MemQueue) Complete(ctx context.Context, deliveryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it := q.find(deliveryID)
	if it == nil {
		return fmt.Errorf("queue: complete unknown delivery %s", deliveryID)
	}
	it.status = stateCompleted
	it.lockedBy = ""
	it.finished = q.Now()
	return nil
}

func (q *MemQueue) Retry(ctx context.Context, deliveryID string, cause string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it := q.find(deliveryID)
	if it == nil {
		return false, fmt.Errorf("queue: retry unknown delivery %s", deliveryID)
	}
	it.lockedBy = ""
	it.lastError = cause
	if it.attempts >= q.cfg.MaxAttempts {
		it.status = stateDead
		it.finished = q.Now()
		return false, nil
	}
	it.status = stateQueued
	it.runAt = q.Now().Add(Backoff(q.cfg.BackoffBase, it.attempts))
	return true, nil
}

func (q *MemQueue) Fail(ctx context.Context, deliveryID string, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it := q.find(deliveryID)
	if it == nil {
		return fmt.Errorf("queue: fail unknown delivery %s", deliveryID)
	}
	it.status = stateDead
	it.lockedBy = ""
	it.lastError = cause
	it.finished = q.Now()
	return nil
}

func (q *MemQueue) ReclaimStalled(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.Now()
	touched := 0
	for _, it := range q.items {
		if it.status != stateRunning || !it.leaseUntil.Before(now) {
			continue
		}
		it.stallCount++
		it.lockedBy = ""
		if it.stallCount > q.cfg.MaxStalls {
			it.status = stateDead
			it.lastError = "stalled delivery exceeded stall budget"
			it.finished = now
		} else {
			it.status = stateQueued
			it.runAt = now
		}
		touched++
	}
	return touched, nil
}

func (q *MemQueue) Sweep(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.Now()
	kept := q.items[:0]
	for _, it := range q.items {
		expired := (it.status == stateCompleted && now.Sub(it.finished) > q.cfg.CompletedRetention) ||
			(it.status == stateDead && now.Sub(it.finished) > q.cfg.DeadRetention)
		if !expired {
			kept = append(kept, it)
		}
	}
	q.items = kept
	return nil
}

func (q *MemQueue) find(id string) *memItem {
	for _, it := range q.items {
		if it.id == id {
			return it
		}
	}
	return nil
}

// Stats summarizes queue contents, for tests and dev introspection.
type Stats struct {
	Queued    int
	Running   int
	Completed int
	Dead      int
}

// Stats returns current per-state counts.
func (q *MemQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, it := range q.items {
		switch it.status {
		case stateQueued:
			s.Queued++
		case stateRunning:
			s.Running++
		case stateCompleted:
			s.Completed++
		case stateDead:
			s.Dead++
		}
	}
	return s
}

// Attempts reports how many deliveries a job's message has received.
func (q *MemQueue) Attempts(jobID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.msg.JobID == jobID {
			return it.attempts
		}
	}
	return 0
}

// LastError returns the recorded failure cause for a job's message.
func (q *MemQueue) LastError(jobID string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.msg.JobID == jobID {
			return it.lastError
		}
	}
	return ""
}
