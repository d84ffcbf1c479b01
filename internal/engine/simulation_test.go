package engine

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
)

// amplePlanet returns a living planet with deep reserves and stores
// already filled to a multiple of baseline comfort.
func amplePlanet(name string, pop float64, comfort float64) *planet.Planet {
	p := planet.New(name, planet.State{
		Gravity:  1,
		Distance: 100,
		Period:   365,
		Endowment: resource.Vector{
			resource.Water:      1e12,
			resource.Food:       1e12,
			resource.Energy:     1e12,
			resource.Population: pop,
		},
	})
	base := planet.DefaultBaseline()
	p.Available[resource.Water] = base.WaterPerCapita * pop * comfort
	p.Available[resource.Food] = base.FoodPerCapita * pop * comfort
	p.Available[resource.Energy] = base.EnergyPerCapita * pop * comfort
	return p
}

func deadPlanet(name string) *planet.Planet {
	return planet.New(name, planet.State{
		Distance:  40,
		Period:    200,
		Endowment: resource.Vector{resource.Population: 0},
	})
}

func newTestSim(planets ...*planet.Planet) *Simulation {
	return NewSimulation(planets, planet.DefaultBaseline(), planet.DefaultTuning())
}

func TestAdvanceDayAliveBesideDead(t *testing.T) {
	a := amplePlanet("alba", 1000, 2)
	b := deadPlanet("brine")
	s := newTestSim(a, b)

	bSnapshot := *b
	bSnapshot.Initial = b.Initial.Clone()
	bSnapshot.Raw = b.Raw.Clone()
	bSnapshot.Available = b.Available.Clone()
	bSnapshot.Rate = b.Rate.Clone()

	alive := s.AdvanceDay()

	assert.True(t, alive)
	assert.Equal(t, uint64(1), s.Day)

	// The dead neighbor is untouched and contributes nothing.
	if !reflect.DeepEqual(*b, bSnapshot) {
		t.Fatalf("dead planet mutated during advance:\n got %+v\nwant %+v", *b, bSnapshot)
	}

	// The score grew by exactly the living planet's total QOL.
	assert.InDelta(t, a.TotalQOL(s.Baseline, s.Tuning), s.Score, 1e-9)
	assert.Equal(t, 1, s.Stats.AlivePlanets)
	assert.Equal(t, 1, s.Stats.DeadPlanets)
}

func TestAdvanceAllDeadStillCountsDays(t *testing.T) {
	s := newTestSim(deadPlanet("brine"), deadPlanet("crest"))

	alive, err := s.Advance(5)

	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, uint64(5), s.Day)
	assert.Equal(t, 0.0, s.Score)
}

func TestAdvanceRejectsNonPositiveDays(t *testing.T) {
	s := newTestSim(amplePlanet("alba", 1000, 2))

	for _, n := range []int{0, -1, -100} {
		_, err := s.Advance(n)
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Advance(%d) error = %v, want ErrOutOfRange", n, err)
		}
	}
	assert.Equal(t, uint64(0), s.Day)
}

func TestExtinctionEmitsEventsOnce(t *testing.T) {
	// A single settler on a barren rock dies on the first day.
	lone := planet.New("barren", planet.State{
		Period:    100,
		Endowment: resource.Vector{resource.Population: 1},
	})
	s := newTestSim(lone)

	alive := s.AdvanceDay()
	assert.False(t, alive)

	var deaths, milestones int
	for _, e := range s.Events {
		switch e.Category {
		case "death":
			deaths++
		case "milestone":
			milestones++
		}
	}
	assert.Equal(t, 1, deaths)
	assert.Equal(t, 1, milestones)

	// Another day: still dead, counter moves, no duplicate events.
	s.AdvanceDay()
	assert.Equal(t, uint64(2), s.Day)
	assert.Len(t, s.Events, 2)
}

func TestStandingTransferSeedsDeadWorld(t *testing.T) {
	a := amplePlanet("alba", 10000, 4)
	b := deadPlanet("brine")
	b.Distance = 100 // co-orbit with alba: no transit loss at angle 0
	s := newTestSim(a, b)

	_, err := s.SubmitTransfer("population", 3650, "alba", "brine")
	require.NoError(t, err)

	s.AdvanceDay()

	// Colonists land after the step phase: ten a day, no score yet.
	assert.Equal(t, 10.0, b.Population())
	assert.True(t, b.Alive())
	assert.Equal(t, 2, s.Stats.AlivePlanets)

	// The next day the colony steps on its own (and starves, barren as
	// it is, down to round((10-1)*0.75) = 7 before fresh arrivals).
	s.AdvanceDay()
	assert.True(t, b.Population() >= 7)
}

func TestInspectSingle(t *testing.T) {
	a := amplePlanet("alba", 1000, 2)
	s := newTestSim(a)

	rep, err := s.Inspect("alba", "")
	require.NoError(t, err)

	assert.Equal(t, "alba", rep.Planet.Name)
	assert.True(t, rep.Planet.Alive)
	assert.Equal(t, 1000.0, rep.Planet.Population)
	assert.Nil(t, rep.Other)
	assert.InDelta(t, 1.0, rep.Planet.Abundance[resource.Water], 1e-12)

	// Inspection never mutates.
	assert.Equal(t, uint64(0), s.Day)
}

func TestInspectPair(t *testing.T) {
	a := amplePlanet("alba", 1000, 2)
	a.Distance, a.Angle = 3, 0
	b := amplePlanet("brine", 500, 2)
	b.Distance, b.Angle = 4, math.Pi/2
	s := newTestSim(a, b)

	_, err := s.SubmitTransfer("water", 100, "alba", "brine")
	require.NoError(t, err)

	rep, err := s.Inspect("alba", "brine")
	require.NoError(t, err)

	require.NotNil(t, rep.Other)
	assert.Equal(t, "brine", rep.Other.Name)
	assert.InDelta(t, 5.0, rep.Distance, 1e-9)
	assert.Equal(t, 100.0, rep.Net[resource.Water])

	mirror, err := s.Inspect("brine", "alba")
	require.NoError(t, err)
	assert.Equal(t, -100.0, mirror.Net[resource.Water])
}

func TestInspectUnknownPlanet(t *testing.T) {
	s := newTestSim(amplePlanet("alba", 1000, 2))

	_, err := s.Inspect("ghost", "")
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = s.Inspect("alba", "ghost")
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestSubmitTransferValidation(t *testing.T) {
	s := newTestSim(amplePlanet("alba", 1000, 2), amplePlanet("brine", 500, 2))

	cases := []struct {
		name     string
		resource string
		amount   float64
		from, to string
	}{
		{"unknown resource", "gold", 10, "alba", "brine"},
		{"zero amount", "water", 0, "alba", "brine"},
		{"negative amount", "water", -5, "alba", "brine"},
		{"nan amount", "water", math.NaN(), "alba", "brine"},
		{"unknown source", "water", 10, "ghost", "brine"},
		{"unknown destination", "water", 10, "alba", "ghost"},
		{"self transfer", "water", 10, "alba", "alba"},
	}

	for _, tc := range cases {
		_, err := s.SubmitTransfer(tc.resource, tc.amount, tc.from, tc.to)
		if !errors.Is(err, ErrInvalidCommand) {
			t.Fatalf("%s: error = %v, want ErrInvalidCommand", tc.name, err)
		}
	}
	assert.Equal(t, 0, s.Ledger.Count())
	assert.Empty(t, s.Events)

	desc, err := s.SubmitTransfer("water", 365, "alba", "brine")
	require.NoError(t, err)
	assert.Contains(t, desc, "alba")
	assert.Equal(t, 1, s.Ledger.Count())
	require.Len(t, s.Events, 1)
	assert.Equal(t, "transfer", s.Events[0].Category)
}

func TestCancelTransfer(t *testing.T) {
	s := newTestSim(amplePlanet("alba", 1000, 2), amplePlanet("brine", 500, 2))

	_, err := s.SubmitTransfer("energy", 1000, "alba", "brine")
	require.NoError(t, err)
	id := s.Ledger.Transfers()[0].ID

	_, err = s.CancelTransfer(id)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Ledger.Count())

	_, err = s.CancelTransfer(id)
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := newTestSim(amplePlanet("alba", 1000, 2), amplePlanet("brine", 500, 2))

	id, ch := s.Subscribe()
	defer s.Unsubscribe(id)

	_, err := s.SubmitTransfer("food", 50, "alba", "brine")
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, "transfer", e.Category)
	default:
		t.Fatal("expected a buffered event on the subscriber channel")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newTestSim(amplePlanet("alba", 1000, 2))

	id, ch := s.Subscribe()
	s.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
}

func TestEventLogTrimsToCap(t *testing.T) {
	s := newTestSim(amplePlanet("alba", 1000, 2))

	for i := 0; i < maxEvents+25; i++ {
		s.EmitEvent(Event{Day: uint64(i), Description: fmt.Sprintf("tick %d", i), Category: "test"})
	}

	assert.Len(t, s.Events, maxEvents)
	assert.Equal(t, uint64(25), s.Events[0].Day)

	recent := s.RecentEvents(10)
	assert.Len(t, recent, 10)
	assert.Equal(t, uint64(maxEvents+24), recent[9].Day)
}

func TestPlanetsFromStatesIsSorted(t *testing.T) {
	states := map[string]planet.State{
		"crest": {Endowment: resource.Vector{resource.Population: 1}},
		"alba":  {Endowment: resource.Vector{resource.Population: 2}},
		"brine": {Endowment: resource.Vector{resource.Population: 3}},
	}

	planets := PlanetsFromStates(states)

	require.Len(t, planets, 3)
	assert.Equal(t, "alba", planets[0].Name)
	assert.Equal(t, "brine", planets[1].Name)
	assert.Equal(t, "crest", planets[2].Name)
}
