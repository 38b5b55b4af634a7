package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"printshop/internal/sqlinline"
)

// Delivery states persisted in extraction_queue.status.
const (
	stateQueued    = "queued"
	stateRunning   = "running"
	stateCompleted = "completed"
	stateDead      = "dead"
)

// PGQueue is the durable queue backed by the extraction_queue table. Claiming
// uses FOR UPDATE SKIP LOCKED so concurrent workers never receive the same
// delivery while its lease is held.
type PGQueue struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewPGQueue constructs a Postgres-backed queue with the given tuning.
func NewPGQueue(pool *pgxpool.Pool, cfg Config) *PGQueue {
	return &PGQueue{pool: pool, cfg: cfg.withDefaults()}
}

// Enqueue schedules a message for immediate delivery. The caller must have
// durably created the job row first.
func (q *PGQueue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: marshal payload: %w", err)
	}
	_, err = q.pool.Exec(ctx, sqlinline.QEnqueueDelivery, uuid.NewString(), msg.JobID, payload, stateQueued, q.cfg.MaxAttempts)
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Claim leases the oldest ready delivery for workerID, bumping its attempt
// counter. Returns ErrEmpty when nothing is due.
func (q *PGQueue) Claim(ctx context.Context, workerID string) (*Delivery, error) {
	row := q.pool.QueryRow(ctx, sqlinline.QClaimDelivery, stateQueued, stateRunning, workerID, q.cfg.LockDuration.Seconds())

	var (
		id      string
		payload []byte
		attempt int
	)
	if err := row.Scan(&id, &payload, &attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("queue: claim: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("queue: decode payload: %w", err)
	}
	return &Delivery{ID: id, Message: msg, Attempt: attempt}, nil
}

// Heartbeat extends the lease on an in-flight delivery.
func (q *PGQueue) Heartbeat(ctx context.Context, deliveryID string) error {
	_, err := q.pool.Exec(ctx, sqlinline.QHeartbeatDelivery, deliveryID, q.cfg.LockDuration.Seconds(), stateRunning)
	if err != nil {
		return fmt.Errorf("queue: heartbeat: %w", err)
	}
	return nil
}

// Complete acknowledges a delivery.
func (q *PGQueue) Complete(ctx context.Context, deliveryID string) error {
	_, err := q.pool.Exec(ctx, sqlinline.QCompleteDelivery, deliveryID, stateCompleted)
	if err != nil {
		return fmt.Errorf("queue: complete: %w", err)
	}
	return nil
}

// Retry reschedules a transiently failed delivery with exponential backoff,
// dead-lettering once attempts are exhausted. Reports whether another delivery
// was scheduled.
func (q *PGQueue) Retry(ctx context.Context, deliveryID string, cause string) (bool, error) {
	row := q.pool.QueryRow(ctx, sqlinline.QRetryDelivery, deliveryID, stateDead, stateQueued, q.cfg.BackoffBase.Seconds(), cause)

	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("queue: retry unknown delivery %s", deliveryID)
		}
		return false, fmt.Errorf("queue: retry: %w", err)
	}
	return status == stateQueued, nil
}

// Fail dead-letters a delivery immediately.
func (q *PGQueue) Fail(ctx context.Context, deliveryID string, cause string) error {
	_, err := q.pool.Exec(ctx, sqlinline.QFailDelivery, deliveryID, stateDead, cause)
	if err != nil {
		return fmt.Errorf("queue: fail: %w", err)
	}
	return nil
}

// ReclaimStalled returns expired-lease deliveries to the queue for another
// worker, dead-lettering deliveries that exceeded the stall budget. Returns
// the number of rows touched.
func (q *PGQueue) ReclaimStalled(ctx context.Context) (int, error) {
	tag, err := q.pool.Exec(ctx, sqlinline.QReclaimStalledDeliveries, stateRunning, q.cfg.MaxStalls, stateDead, stateQueued)
	if err != nil {
		return 0, fmt.Errorf("queue: reclaim stalled: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Sweep prunes acknowledged deliveries past their retention windows. Dead
// deliveries are kept longer than completed ones for diagnostics.
func (q *PGQueue) Sweep(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, sqlinline.QSweepDeliveries, stateCompleted, stateDead, q.cfg.CompletedRetention.Seconds(), q.cfg.DeadRetention.Seconds())
	if err != nil {
		return fmt.Errorf("queue: sweep: %w", err)
	}
	return nil
}
