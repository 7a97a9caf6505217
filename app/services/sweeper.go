package services

import (
	"time"

	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/event"
	"github.com/mazeltote/mazeltote/pkg/logger"
	"github.com/mazeltote/mazeltote/pkg/metrics"
	"github.com/mazeltote/mazeltote/pkg/schedule"
)

// Sweeper cancels orders whose payment window closed without a capture.
// Running it is always safe: the cancel predicate only matches
// awaiting_payment orders, so a capture that lands mid-sweep wins.
type Sweeper struct {
	orders *repositories.OrderRepository
}

func NewSweeper() *Sweeper {
	return &Sweeper{orders: repositories.NewOrderRepository()}
}

// Sweep cancels every expired awaiting_payment order and returns how many
// it moved.
func (s *Sweeper) Sweep() (int64, error) {
	n, err := s.orders.CancelExpired(time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.OrdersExpired.Add(float64(n))
		logger.Info("sweeper: expired orders cancelled", "count", n)
		event.FireAsync("orders.swept", n)
	}
	return n, nil
}

// Register adds the sweep to the scheduler at the configured interval. The
// scheduler fires a freshly registered entry on its first tick, so a sweep
// also runs right after boot to catch orders that expired while the process
// was down.
func (s *Sweeper) Register() {
	minutes := int(config.SweepInterval().Minutes())
	if minutes < 1 {
		minutes = 1
	}

	schedule.Every(minutes).Minutes().
		WithoutOverlapping().
		Name("orders:expire").
		Run(func() {
			if _, err := s.Sweep(); err != nil {
				logger.Error("sweeper: sweep failed", "error", err)
			}
		})
}
