package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// daysPerYear is the runner's cosmetic calendar; the ledger's own year
// length lives in the tuning.
const daysPerYear = 365

// Runner paces the simulation against the wall clock. The core is
// purely synchronous; the Runner owns how many days run per real second
// and serializes each day through the simulation's mutex.
type Runner struct {
	Sim      *Simulation
	Speed    float64       // Multiplier: 1.0 = one day per interval, 0 = paused
	Interval time.Duration // Base day interval
	Running  bool

	// Callbacks per cadence layer, populated during setup.
	OnDay  func(day uint64)
	OnYear func(day uint64)
}

// NewRunner creates a runner with default pacing: one simulated day per
// real second.
func NewRunner(sim *Simulation) *Runner {
	return &Runner{
		Sim:      sim,
		Speed:    1.0,
		Interval: time.Second,
	}
}

// SetSpeed adjusts the pacing multiplier. Non-positive values are
// rejected before anything changes.
func (r *Runner) SetSpeed(v float64) error {
	if math.IsNaN(v) || v <= 0 {
		return fmt.Errorf("%w: speed %v must be positive", ErrOutOfRange, v)
	}
	r.Speed = v
	return nil
}

// SetInterval adjusts the base day interval.
func (r *Runner) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: interval %v must be positive", ErrOutOfRange, d)
	}
	r.Interval = d
	return nil
}

// Run starts the pacing loop. Blocks until Stop is called or the last
// population dies out.
func (r *Runner) Run() {
	r.Running = true
	slog.Info("runner started", "day", r.Sim.Day, "speed", r.Speed, "interval", r.Interval)

	for r.Running {
		if r.Speed <= 0 {
			// Paused. Sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		r.Sim.Mu.Lock()
		alive := r.Sim.AdvanceDay()
		day := r.Sim.Day
		r.Sim.Mu.Unlock()

		if r.OnDay != nil {
			r.OnDay(day)
		}
		if day%daysPerYear == 0 && r.OnYear != nil {
			r.OnYear(day)
		}

		if !alive {
			slog.Info("no population remains, stopping", "day", day)
			r.Running = false
			break
		}

		// Sleep for the remainder of the day interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(r.Interval) / r.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("runner stopped", "day", r.Sim.Day)
}

// Stop halts the pacing loop.
func (r *Runner) Stop() {
	r.Running = false
}

// SimDate renders a day counter as a calendar string.
func SimDate(day uint64) string {
	years := day / daysPerYear
	days := day % daysPerYear
	return fmt.Sprintf("Year %d, Day %d", years+1, days+1)
}
