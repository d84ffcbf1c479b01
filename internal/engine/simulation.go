// Package engine drives the simulation day by day: planet steps, the
// transfer ledger, score accumulation, and the command surface the
// presentation layer talks to.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/trade"
)

// Simulation holds the complete system state and wires the pieces
// together. One simulated day is a single atomic unit of work; the core
// itself never locks. Callers that share a Simulation across goroutines
// (the runner, the HTTP surface) serialize through Mu.
type Simulation struct {
	Mu sync.Mutex

	Planets []*planet.Planet
	Index   map[string]*planet.Planet
	Ledger  *trade.Ledger

	Baseline planet.Baseline
	Tuning   planet.Tuning

	Day   uint64  // Days advanced since the system formed
	Score float64 // Running game-wide QOL score

	Events []Event // Recent events, oldest first, capped at maxEvents
	Stats  SimStats

	gameOver bool

	subMu       sync.Mutex
	subscribers map[uint64]chan Event
	nextSubID   uint64
}

// SimStats tracks aggregate system statistics, refreshed once per day.
type SimStats struct {
	Day             uint64  `json:"day"`
	TotalPopulation float64 `json:"total_population"`
	AlivePlanets    int     `json:"alive_planets"`
	DeadPlanets     int     `json:"dead_planets"`
	DailyQOL        float64 `json:"daily_qol"`
	Score           float64 `json:"score"`
	ActiveTransfers int     `json:"active_transfers"`
}

// NewSimulation wires planets, baseline, and tuning into a ready system.
func NewSimulation(planets []*planet.Planet, base planet.Baseline, tun planet.Tuning) *Simulation {
	s := &Simulation{
		Planets:     planets,
		Index:       make(map[string]*planet.Planet, len(planets)),
		Ledger:      trade.NewLedger(tun),
		Baseline:    base,
		Tuning:      tun,
		subscribers: make(map[uint64]chan Event),
	}
	for _, p := range planets {
		s.Index[p.Name] = p
	}
	s.updateStats()
	return s
}

// PlanetsFromStates builds planets from seed states in name order, so a
// map-shaped configuration always produces the same system.
func PlanetsFromStates(states map[string]planet.State) []*planet.Planet {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	planets := make([]*planet.Planet, 0, len(names))
	for _, name := range names {
		planets = append(planets, planet.New(name, states[name]))
	}
	return planets
}

// Planet implements trade.PlanetStore against the authoritative index.
func (s *Simulation) Planet(name string) (*planet.Planet, bool) {
	p, ok := s.Index[name]
	return p, ok
}

// RefreshStats recomputes the aggregate counters immediately instead
// of waiting for the next simulated day. Callers restoring saved state
// use this after reassembling the system.
func (s *Simulation) RefreshStats() {
	s.updateStats()
}

// AnyAlive reports whether any planet still has population.
func (s *Simulation) AnyAlive() bool {
	for _, p := range s.Planets {
		if p.Alive() {
			return true
		}
	}
	return false
}

// AdvanceDay runs one simulated day: every planet steps and its total
// QOL accrues to the running score, then the ledger applies the day's
// standing flows. The two phases never interleave, so planet order
// cannot change the outcome. Returns whether any population remains;
// once that goes false the game has ended.
func (s *Simulation) AdvanceDay() bool {
	var died []string
	for _, p := range s.Planets {
		wasAlive := p.Alive()
		p.Step(s.Baseline, s.Tuning)
		s.Score += p.TotalQOL(s.Baseline, s.Tuning)

		if wasAlive && !p.Alive() {
			died = append(died, p.Name)
		}
	}

	s.Ledger.Forward(s)
	s.Day++

	for _, name := range died {
		s.EmitEvent(Event{
			Day:         s.Day,
			Description: fmt.Sprintf("%s has fallen silent, its last inhabitants gone", name),
			Category:    "death",
			Meta:        map[string]any{"planet": name},
		})
	}

	s.updateStats()

	alive := s.AnyAlive()
	if !alive && !s.gameOver {
		s.gameOver = true
		s.EmitEvent(Event{
			Day:         s.Day,
			Description: "No population remains anywhere in the system",
			Category:    "milestone",
		})
		slog.Info("system extinct", "day", s.Day, "final_score", s.Score)
	}

	slog.Debug("day complete",
		"day", s.Day,
		"population", s.Stats.TotalPopulation,
		"alive_planets", s.Stats.AlivePlanets,
		"score", s.Score,
	)

	return alive
}

// Advance runs n simulated days and returns the final liveness. A
// non-positive count is rejected before any state changes. An all-dead
// system still advances its day counter.
func (s *Simulation) Advance(n int) (bool, error) {
	if n <= 0 {
		return s.AnyAlive(), fmt.Errorf("%w: day count %d must be positive", ErrOutOfRange, n)
	}

	alive := false
	for i := 0; i < n; i++ {
		alive = s.AdvanceDay()
	}
	return alive, nil
}

func (s *Simulation) updateStats() {
	stats := SimStats{
		Day:             s.Day,
		Score:           s.Score,
		ActiveTransfers: s.Ledger.Count(),
	}
	for _, p := range s.Planets {
		if p.Alive() {
			stats.AlivePlanets++
			stats.TotalPopulation += p.Population()
			stats.DailyQOL += p.TotalQOL(s.Baseline, s.Tuning)
		} else {
			stats.DeadPlanets++
		}
	}
	s.Stats = stats
}
