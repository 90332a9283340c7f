package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
)

const (
	defaultCountdownInterval    = time.Second
	defaultCountdownConcurrency = 16
)

// CountdownWorker ticks every active quiz session so timeouts commit even
// when no client is polling. A session whose tick is still running (a slow
// coach call on timeout) is skipped until it finishes; CatchUp covers the gap.
type CountdownWorker struct {
	sessions QuizService
	interval time.Duration
	logger   zerolog.Logger

	group    errgroup.Group
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCountdownWorker builds the worker. Zero values select a one second
// interval and a bounded fan-out.
func NewCountdownWorker(sessions QuizService, interval time.Duration, concurrency int, logger zerolog.Logger) *CountdownWorker {
	if interval <= 0 {
		interval = defaultCountdownInterval
	}
	if concurrency <= 0 {
		concurrency = defaultCountdownConcurrency
	}
	w := &CountdownWorker{
		sessions: sessions,
		interval: interval,
		logger:   logger.With().Str("component", "countdown_worker").Logger(),
		inflight: make(map[string]struct{}),
	}
	w.group.SetLimit(concurrency)
	return w
}

// Run ticks until ctx is cancelled, then waits for running ticks.
func (w *CountdownWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.interval).Msg("countdown worker started")
	for {
		select {
		case <-ctx.Done():
			_ = w.group.Wait()
			w.logger.Info().Msg("countdown worker stopped")
			return
		case <-ticker.C:
			w.TickOnce(ctx)
		}
	}
}

// TickOnce catches every active session up with the wall clock. It waits at
// most one interval for the ticks it started; slower ones keep running.
func (w *CountdownWorker) TickOnce(ctx context.Context) {
	ids, err := w.sessions.ActiveSessionIDs(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn().Err(err).Msg("failed to list active sessions")
		}
		return
	}

	var started sync.WaitGroup
	for _, id := range ids {
		if !w.claim(id) {
			continue
		}
		started.Add(1)
		ok := w.group.TryGo(func() error {
			defer started.Done()
			defer w.release(id)
			if err := w.sessions.Tick(ctx, id); err != nil && !errors.Is(err, repository.ErrQuizSessionNotFound) && !errors.Is(err, context.Canceled) {
				w.logger.Warn().Err(err).Str("session_id", id).Msg("failed to tick session")
			}
			return nil
		})
		if !ok {
			started.Done()
			w.release(id)
		}
	}

	finished := make(chan struct{})
	go func() {
		started.Wait()
		close(finished)
	}()

	timer := time.NewTimer(w.interval)
	defer timer.Stop()
	select {
	case <-finished:
	case <-timer.C:
		w.logger.Debug().Msg("countdown tick still running, not waiting")
	case <-ctx.Done():
	}
}

func (w *CountdownWorker) claim(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[id]; busy {
		return false
	}
	w.inflight[id] = struct{}{}
	return true
}

func (w *CountdownWorker) release(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, id)
}
