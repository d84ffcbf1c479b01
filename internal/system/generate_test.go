package system

import (
	"math"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlstone/orrery/internal/engine"
	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
)

func TestGenerateDeterministic(t *testing.T) {
	cfg := SmallTestConfig()

	a := Generate(cfg)
	b := Generate(cfg)

	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different systems")
	}
}

func TestGenerateSeedsDiffer(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)

	cfg.Seed = 43
	b := Generate(cfg)

	if reflect.DeepEqual(a, b) {
		t.Fatal("different seeds produced identical systems")
	}
}

func TestGenerateFieldRanges(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Seed = 7

	states := Generate(cfg)
	require.Len(t, states, cfg.Planets)

	homes := 0
	var distances []float64
	for name, st := range states {
		assert.GreaterOrEqual(t, st.Gravity, 0.3, name)
		assert.LessOrEqual(t, st.Gravity, 2.5, name)
		assert.Greater(t, st.Distance, 0.0, name)
		assert.Greater(t, st.Period, 0.0, name)
		assert.GreaterOrEqual(t, st.Angle, 0.0, name)
		assert.Less(t, st.Angle, 2*math.Pi, name)

		for _, kind := range resource.Consumables() {
			assert.Greater(t, st.Endowment[kind], 0.0, "%s %s", name, kind)
		}
		assert.GreaterOrEqual(t, st.Endowment[resource.Population], 0.0, name)

		if st.Endowment[resource.Population] == cfg.HomePopulation {
			homes++
		}
		distances = append(distances, st.Distance)
	}

	// Exactly one cradle world; outpost rolls stay well below 1e6.
	assert.Equal(t, 1, homes)

	// Orbits form a strictly widening ladder.
	sort.Float64s(distances)
	for i := 1; i < len(distances); i++ {
		assert.Greater(t, distances[i], distances[i-1])
	}
}

func TestGenerateNamePoolWraps(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Planets = len(planetNames) + 6

	states := Generate(cfg)
	assert.Len(t, states, cfg.Planets)
}

func TestGeneratedSystemRuns(t *testing.T) {
	cfg := SmallTestConfig()
	states := Generate(cfg)

	sim := engine.NewSimulation(
		engine.PlanetsFromStates(states),
		planet.DefaultBaseline(),
		planet.DefaultTuning(),
	)

	alive, err := sim.Advance(60)
	require.NoError(t, err)

	// The cradle world sheds population while stores build from
	// nothing, then stabilizes. Two months in it must still be there.
	assert.True(t, alive)
	assert.Equal(t, uint64(60), sim.Day)

	var home *planet.Planet
	for _, p := range sim.Planets {
		if p.Initial[resource.Population] == cfg.HomePopulation {
			home = p
		}
	}
	require.NotNil(t, home)
	assert.True(t, home.Alive())
}

func TestDescribeSortsByOrbit(t *testing.T) {
	states := map[string]planet.State{
		"far":  {Distance: 400, Endowment: resource.Vector{resource.Water: 1e12}},
		"near": {Distance: 50, Endowment: resource.Vector{resource.Water: 2e12}},
		"mid":  {Distance: 120, Endowment: resource.Vector{resource.Population: 5000}},
	}

	lines := Describe(states)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "near"))
	assert.True(t, strings.HasPrefix(lines[1], "mid"))
	assert.True(t, strings.HasPrefix(lines[2], "far"))
	assert.Contains(t, lines[1], "5,000")
}
