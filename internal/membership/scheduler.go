// internal/membership/scheduler.go
package membership

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs the reconciler on a fixed interval.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewScheduler(r *Reconciler, interval time.Duration) *Scheduler {
	return &Scheduler{reconciler: r, interval: interval}
}

// Start launches the ticker goroutine. The first run happens after one interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	slog.Info("Reconciliation scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.reconciler.Run(ctx); err != nil {
					slog.Error("Scheduled reconciliation failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	slog.Info("Reconciliation scheduler stopped")
}
