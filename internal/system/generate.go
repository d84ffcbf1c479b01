// Package system generates planetary systems using layered simplex
// noise: orbit spacing follows a jittered geometric ladder, and each
// world's endowment is sampled from independent noise fields so nearby
// seeds still produce distinct systems.
package system

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	humanize "github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
)

// GenConfig holds system generation parameters.
type GenConfig struct {
	Planets        int     // Number of worlds to place
	Seed           int64   // Random seed (0 = random)
	HomePopulation float64 // Founding population on the cradle world
	InnerOrbit     float64 // Distance of the innermost orbit
	SpacingRatio   float64 // Geometric ratio between adjacent orbits
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Planets:        8,
		Seed:           0,
		HomePopulation: 1e6,
		InnerOrbit:     60,
		SpacingRatio:   1.55,
	}
}

// SmallTestConfig returns a tiny system for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Planets:        3,
		Seed:           42,
		HomePopulation: 1e5,
		InnerOrbit:     60,
		SpacingRatio:   1.7,
	}
}

// rawScale sets the magnitude of a generated world's mineable stocks.
// A cradle world drawing ~1e9 water a day gets years of reserve.
const rawScale = 4e12

// planetNames is the pool worlds draw from, shuffled per seed.
var planetNames = []string{
	"alba", "brine", "crest", "dorane", "ember", "farrow",
	"gale", "halden", "iris", "june", "korrin", "lumen",
	"meridian", "noct", "opaline", "perth", "quill", "ruthen",
	"sable", "tern", "umber", "vireo", "wren", "yarrow",
}

// Generate creates a complete planetary system keyed by planet name.
// The same config always produces the same system.
func Generate(cfg GenConfig) map[string]planet.State {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Independent noise layers for endowment richness and world mass.
	richNoise := opensimplex.NewNormalized(seed)
	massNoise := opensimplex.NewNormalized(seed + 1)

	rng := rand.New(rand.NewSource(seed + 100))

	names := make([]string, len(planetNames))
	copy(names, planetNames)
	rng.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})

	// The cradle world sits on the second orbit when there is one.
	homeIdx := 0
	if cfg.Planets > 1 {
		homeIdx = 1
	}

	states := make(map[string]planet.State, cfg.Planets)
	distance := cfg.InnerOrbit

	for i := 0; i < cfg.Planets; i++ {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s-%d", name, i/len(names)+1)
		}

		// Jitter each orbit so the ladder is not perfectly geometric.
		jitter := 0.9 + 0.2*rng.Float64()
		d := distance * jitter
		distance *= cfg.SpacingRatio

		angle := rng.Float64() * 2 * math.Pi
		x, y := d*math.Cos(angle)/10, d*math.Sin(angle)/10

		// Heavier worlds hold proportionally larger stocks.
		gravity := 0.3 + 2.2*massNoise.Eval2(x*0.03, y*0.03)

		st := planet.State{
			Gravity:   gravity,
			Distance:  d,
			Period:    orbitalPeriod(d),
			Angle:     angle,
			Endowment: rollEndowment(richNoise, x, y, d, gravity),
		}

		// Outpost roll happens for every world so the draw order stays
		// fixed; the cradle world overrides it below.
		pop := 0.0
		if rng.Float64() < 0.4 {
			pop = math.Round(2e4 + rng.Float64()*1.8e5)
		}
		if i == homeIdx {
			pop = cfg.HomePopulation
		}
		st.Endowment[resource.Population] = pop

		states[name] = st
	}

	return states
}

// orbitalPeriod derives a Kepler-flavored year length from orbit size,
// pinned so a world at distance 100 completes its orbit in 365 days.
func orbitalPeriod(d float64) float64 {
	return math.Round(0.365 * math.Pow(d, 1.5))
}

// rollEndowment samples per-resource richness from offset positions in
// the noise field so a world can be water-rich but energy-poor.
func rollEndowment(noise opensimplex.Noise, x, y, d, gravity float64) resource.Vector {
	offsets := map[resource.Kind]float64{
		resource.Water:  0,
		resource.Food:   37.5,
		resource.Energy: 75.1,
	}

	// Distance gradients: outer worlds trend icy, inner worlds sunny.
	bias := map[resource.Kind]float64{
		resource.Water:  0.6 + math.Min(d/800, 1.5)*0.4,
		resource.Food:   1.0,
		resource.Energy: 0.4 + 0.6*math.Min(100/math.Max(d, 100), 1),
	}

	endow := resource.Vector{}
	for _, kind := range resource.Consumables() {
		off := offsets[kind]
		rich := octaveNoise(noise, x+off, y+off, 3, 0.05, 0.5)
		endow[kind] = rawScale * (0.25 + 1.5*rich) * gravity * bias[kind]
	}
	return endow
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// Describe renders one summary line per world, innermost orbit first.
func Describe(states map[string]planet.State) []string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return states[names[i]].Distance < states[names[j]].Distance
	})

	lines := make([]string, 0, len(names))
	for _, name := range names {
		st := states[name]
		lines = append(lines, fmt.Sprintf(
			"%-10s d=%-6.0f period=%-6.0f pop=%-12s water=%s food=%s energy=%s",
			name, st.Distance, st.Period,
			humanize.Commaf(st.Endowment[resource.Population]),
			humanize.SIWithDigits(st.Endowment[resource.Water], 1, ""),
			humanize.SIWithDigits(st.Endowment[resource.Food], 1, ""),
			humanize.SIWithDigits(st.Endowment[resource.Energy], 1, ""),
		))
	}
	return lines
}
