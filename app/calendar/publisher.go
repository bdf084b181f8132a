package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// Calendar API quota limits shape these numbers: at most five
	// in-flight inserts, spaced at least 300ms apart.
	maxConcurrent = 5
	minInterval   = 300 * time.Millisecond
	maxAttempts   = 3
)

// Publisher pushes events through the client with bounded concurrency,
// request spacing and per-event retries.
type Publisher struct {
	client        Client
	maxConcurrent int
	minInterval   time.Duration
	maxAttempts   int
	backoffBase   time.Duration

	mu           sync.Mutex
	lastDispatch time.Time
}

func NewPublisher(client Client) *Publisher {
	return &Publisher{
		client:        client,
		maxConcurrent: maxConcurrent,
		minInterval:   minInterval,
		maxAttempts:   maxAttempts,
		backoffBase:   time.Second,
	}
}

// Run publishes all events and returns one result per event, in the
// input order. Failures are reported, never raised: one bad event must
// not block the rest of a town's batch.
func (p *Publisher) Run(ctx context.Context, events []*Event) []Result {
	results := make([]Result, len(events))
	semaphore := make(chan struct{}, p.maxConcurrent)

	var wg sync.WaitGroup
	for i, event := range events {
		wg.Add(1)
		go func(i int, event *Event) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := p.waitForSlot(ctx); err != nil {
				results[i] = Result{GUID: event.GUID, Err: err}
				return
			}

			results[i] = p.publishWithRetry(ctx, event)
		}(i, event)
	}
	wg.Wait()

	return results
}

// waitForSlot enforces the minimum spacing between dispatches.
func (p *Publisher) waitForSlot(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	next := p.lastDispatch.Add(p.minInterval)
	if next.Before(now) {
		next = now
	}
	p.lastDispatch = next
	p.mu.Unlock()

	wait := next.Sub(now)
	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, event *Event) Result {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := p.client.Insert(ctx, event)
		if err == nil {
			return Result{GUID: event.GUID, PublishedAt: time.Now()}
		}

		lastErr = err
		slog.Warn("Failed to publish event",
			"guid", event.GUID,
			"attempt", attempt,
			"error", err)

		if attempt == p.maxAttempts {
			break
		}

		// Exponential backoff: 2s, 4s, ...
		backoff := p.backoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return Result{GUID: event.GUID, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}

	return Result{
		GUID: event.GUID,
		Err:  fmt.Errorf("failed after %d attempts: %w", p.maxAttempts, lastErr),
	}
}
