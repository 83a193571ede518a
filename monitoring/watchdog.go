package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/procsim/sim"
)

// ErrWatchdogExpired is returned when a run takes longer than its wall-clock
// budget.
var ErrWatchdogExpired = errors.New("monitoring: watchdog expired")

// RunWithWatchdog runs the simulator until tMax, but gives up once the
// wall-clock budget is spent. The simulator checks the budget between events,
// so a process body that never suspends cannot be interrupted. A budget of
// zero means no limit.
func RunWithWatchdog(
	ctx context.Context,
	s sim.Engine,
	tMax sim.VTimeInSec,
	budget time.Duration,
) (sim.VTimeInSec, error) {
	if budget <= 0 {
		return s.RunContext(ctx, tMax)
	}

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	now, err := s.RunContext(runCtx, tMax)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return now, fmt.Errorf("%w after %s at simulated time %.10f",
			ErrWatchdogExpired, budget, now)
	}

	return now, err
}
