package orders

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/burdemar/orderflow/internal/clock"
)

// OrderExpirer is what the sweeper drives; satisfied by *Service.
type OrderExpirer interface {
	ExpireDueOrders(ctx context.Context, asOf time.Time) (int, error)
}

const DefaultSweepInterval = 60 * time.Second

// Sweeper periodically expires overdue pending orders. Errors are logged,
// never propagated; there is nobody to propagate them to.
type Sweeper struct {
	svc      OrderExpirer
	clock    clock.Clock
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(svc OrderExpirer, clk clock.Clock, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{svc: svc, clock: clk, interval: interval, log: log}
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.svc.ExpireDueOrders(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("expired overdue orders", zap.Int("count", n))
	}
}
