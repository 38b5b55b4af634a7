// Package queue provides durable at-least-once delivery for extraction jobs,
// with exponential retry backoff, lease-based stall detection, and
// dead-lettering. The Postgres implementation is the production queue; the
// in-memory one serves development and tests with identical semantics.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by Claim when no delivery is ready.
var ErrEmpty = errors.New("queue: no delivery available")

// Message is the payload carried by a queue delivery.
type Message struct {
	JobID         string  `json:"jobId"`
	UploadAssetID string  `json:"uploadAssetId"`
	FilePath      string  `json:"filePath"`
	UserID        *string `json:"userId,omitempty"`
}

// Delivery is one claimed attempt at processing a message. Attempt is 1-based
// and counts every delivery of the message, including stall redeliveries.
type Delivery struct {
	ID      string
	Message Message
	Attempt int
}

// Config tunes retry, lease, and retention behavior.
type Config struct {
	// MaxAttempts bounds orchestrator-driven retries before dead-lettering.
	MaxAttempts int
	// BackoffBase is the delay before the first retry; it doubles each attempt.
	BackoffBase time.Duration
	// LockDuration is the lease a worker holds on a claimed delivery. A worker
	// that stops heartbeating within this window is presumed dead.
	LockDuration time.Duration
	// MaxStalls bounds lease-expiry redeliveries before dead-lettering.
	MaxStalls int
	// CompletedRetention bounds how long acknowledged deliveries are kept.
	// Dead deliveries are kept for DeadRetention, which should be longer.
	CompletedRetention time.Duration
	DeadRetention      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.LockDuration <= 0 {
		c.LockDuration = 90 * time.Second
	}
	if c.MaxStalls <= 0 {
		c.MaxStalls = 2
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = 24 * time.Hour
	}
	if c.DeadRetention <= 0 {
		c.DeadRetention = 7 * 24 * time.Hour
	}
	return c
}

// Backoff returns the delay before redelivering a message that has been
// attempted attempt times: base, 2*base, 4*base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Queue is the durable delivery contract consumed by the worker pool.
//
// Complete acknowledges a successfully processed delivery. Retry reschedules a
// transiently failed delivery with backoff, dead-lettering once attempts are
// exhausted; it reports whether another delivery was scheduled. Fail
// dead-letters immediately with no further delivery, for terminal failures the
// orchestrator has already recorded in the job store.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	Claim(ctx context.Context, workerID string) (*Delivery, error)
	Heartbeat(ctx context.Context, deliveryID string) error
	Complete(ctx context.Context, deliveryID string) error
	Retry(ctx context.Context, deliveryID string, cause string) (bool, error)
	Fail(ctx context.Context, deliveryID string, cause string) error
	ReclaimStalled(ctx context.Context) (int, error)
	Sweep(ctx context.Context) error
}
