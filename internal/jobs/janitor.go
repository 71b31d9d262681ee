package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Janitor periodically drops jobs older than a TTL.
type Janitor struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewJanitor(manager *Manager, ttl, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{manager: manager, ttl: ttl, interval: interval, logger: logger, stop: make(chan struct{})}
}

// Start launches the cleanup loop.
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for it. Safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	j.wg.Wait()
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			j.logger.Info("janitor stopping")
			return
		case <-ctx.Done():
			j.logger.Info("context canceled, janitor exiting")
			return
		case <-ticker.C:
			if n := j.manager.Cleanup(j.ttl); n > 0 {
				j.logger.Info("expired jobs removed", "count", n, "ttl", j.ttl)
			}
		}
	}
}
