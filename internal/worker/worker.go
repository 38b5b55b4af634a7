// Package worker runs the queue consumers that execute extraction jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"printshop/internal/domain"
	"printshop/internal/infra"
	"printshop/internal/queue"
)

// Processor executes one claimed message. A nil return acknowledges the
// delivery; a classified terminal error dead-letters it; anything else is
// redelivered with backoff.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) error
}

// Config tunes the pool. Zero values fall back to the documented defaults.
type Config struct {
	// Concurrency is the number of goroutines claiming jobs. Defaults to 2.
	Concurrency int
	// PollInterval is how long an idle consumer waits before claiming again.
	// Defaults to 2s.
	PollInterval time.Duration
	// HeartbeatInterval is how often a consumer extends its lease while a job
	// runs. Defaults to 30s; keep it well under the queue's lock duration.
	HeartbeatInterval time.Duration
	// MaintenanceInterval is how often stalled jobs are reclaimed and expired
	// rows swept. Defaults to 1m.
	MaintenanceInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = time.Minute
	}
	return c
}

// Pool claims extraction jobs concurrently and applies the retry policy to
// each outcome.
type Pool struct {
	queue     queue.Queue
	processor Processor
	cfg       Config
	logger    infra.Logger
}

// NewPool wires a consumer pool.
func NewPool(q queue.Queue, p Processor, cfg Config, logger infra.Logger) *Pool {
	return &Pool{queue: q, processor: p, cfg: cfg.withDefaults(), logger: logger}
}

// Run blocks until ctx is cancelled, then drains in-flight jobs before
// returning. It never returns a non-nil error on clean shutdown.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.cfg.Concurrency; i++ {
		id := fmt.Sprintf("consumer-%d", i)
		g.Go(func() error {
			p.consume(ctx, id)
			return nil
		})
	}
	g.Go(func() error {
		p.maintain(ctx)
		return nil
	})

	return g.Wait()
}

func (p *Pool) consume(ctx context.Context, workerID string) {
	log := p.logger.With().Str("worker_id", workerID).Logger()
	for {
		d, err := p.queue.Claim(ctx, workerID)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			if !sleep(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("claim failed")
			if !sleep(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		}

		p.handle(ctx, log, d)
		if ctx.Err() != nil {
			return
		}
	}
}

// handle runs one delivery to its outcome. Shutdown cancels the processing
// context, but the outcome is still recorded on a fresh context, so an
// interrupted job settles as a failure rather than stalling its lease.
func (p *Pool) handle(ctx context.Context, log infra.Logger, d *queue.Delivery) {
	log = log.With().Str("job_id", d.Message.JobID).Int("attempt", d.Attempt).Logger()
	log.Info().Msg("job claimed")

	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go p.heartbeat(hbCtx, log, d.ID)

	err := p.processor.Process(ctx, d.Message)
	stopHeartbeat()

	// Outcome recording uses a fresh context so cancellation mid-job still
	// settles the delivery instead of leaving it to stall detection.
	ackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case err == nil:
		if ackErr := p.queue.Complete(ackCtx, d.ID); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to complete delivery")
			return
		}
		log.Info().Msg("job completed")
	case domain.IsTerminal(err):
		if ackErr := p.queue.Fail(ackCtx, d.ID, err.Error()); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to dead-letter delivery")
			return
		}
		log.Warn().Err(err).Str("stage", domain.StageOf(err)).Msg("job dead-lettered")
	default:
		requeued, ackErr := p.queue.Retry(ackCtx, d.ID, err.Error())
		if ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to retry delivery")
			return
		}
		if requeued {
			log.Warn().Err(err).Str("stage", domain.StageOf(err)).Msg("job scheduled for retry")
		} else {
			log.Warn().Err(err).Str("stage", domain.StageOf(err)).Msg("job exhausted retries")
		}
	}
}

func (p *Pool) heartbeat(ctx context.Context, log infra.Logger, deliveryID string) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.Heartbeat(ctx, deliveryID); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("heartbeat failed")
			}
		}
	}
}

func (p *Pool) maintain(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.queue.ReclaimStalled(ctx); err != nil {
				p.logger.Error().Err(err).Msg("reclaim stalled jobs failed")
			} else if n > 0 {
				p.logger.Warn().Int("count", n).Msg("reclaimed stalled jobs")
			}
			if err := p.queue.Sweep(ctx); err != nil {
				p.logger.Error().Err(err).Msg("queue sweep failed")
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
