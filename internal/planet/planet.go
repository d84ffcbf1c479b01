// Package planet models a single orbiting body: its physical state, its
// raw and available resource stocks, and the daily update rule that
// drives extraction, consumption, and population change.
package planet

import (
	"math"

	"github.com/arlstone/orrery/internal/resource"
)

// State holds the immutable physical facts that seed a planet.
type State struct {
	Gravity  float64 `yaml:"gravity" json:"gravity"`
	Distance float64 `yaml:"distance" json:"distance"`
	// Period is the days per full revolution around the origin.
	Period float64 `yaml:"period" json:"period"`
	// Angle is the starting orbital angle in radians.
	Angle float64 `yaml:"angle" json:"angle"`
	// Endowment is the planet's total original resource reserve.
	Endowment resource.Vector `yaml:"endowment" json:"endowment"`
}

// Planet is one simulated body. Raw reserves only shrink; Available is
// what the population can actually consume and never goes negative. A
// planet whose population reaches zero is dead: it freezes in place and
// contributes nothing to aggregates, though it persists as a record.
type Planet struct {
	Name     string  `json:"name"`
	Gravity  float64 `json:"gravity"`
	Distance float64 `json:"distance"`
	Period   float64 `json:"period"`
	Angle    float64 `json:"angle"`

	Initial   resource.Vector `json:"initial"`
	Raw       resource.Vector `json:"raw"`
	Available resource.Vector `json:"available"`
	// Rate records each resource's most recent daily fractional change.
	// Diagnostic only; nothing reads it back into the update rules.
	Rate resource.Vector `json:"rate"`
	// QOLRate is the most recent day's fractional change in total
	// quality-of-life, defined as 0 when the prior total was 0.
	QOLRate float64 `json:"qol_rate"`
}

// New constructs a planet from its seed state. Raw starts at the full
// endowment; Available starts empty except for the initial population.
func New(name string, st State) *Planet {
	avail := resource.Zero()
	avail[resource.Population] = st.Endowment[resource.Population]

	return &Planet{
		Name:      name,
		Gravity:   st.Gravity,
		Distance:  st.Distance,
		Period:    st.Period,
		Angle:     st.Angle,
		Initial:   st.Endowment.Clone(),
		Raw:       st.Endowment.Clone(),
		Available: avail,
		Rate:      resource.Zero(),
	}
}

// Population returns the current population count.
func (p *Planet) Population() float64 {
	return p.Available[resource.Population]
}

// Alive reports whether the planet still has population.
func (p *Planet) Alive() bool {
	return p.Population() > 0
}

// Abundance returns the fraction of kind's original reserve still
// unmined, in [0, 1]. An endowment of zero counts as mined out.
func (p *Planet) Abundance(kind resource.Kind) float64 {
	if p.Initial[kind] <= 0 {
		return 0
	}
	return p.Raw[kind] / p.Initial[kind]
}

// PerCapita returns the available stock of kind per inhabitant. Callers
// guard population zero; dead planets never reach this path.
func (p *Planet) PerCapita(kind resource.Kind) float64 {
	return p.Available[kind] / p.Population()
}

// mu runs one day of extraction and consumption for a single consumable.
// The population mines a little more than it needs, scaled down by how
// depleted the reserve is, and can never mine more than remains. The
// return value is the day's fractional change in availability, 0 when
// yesterday's stock was empty.
func (p *Planet) mu(kind resource.Kind, base Baseline, tun Tuning) float64 {
	required := p.Population() * base.PerCapita(kind)

	extraction := required * (1 + tun.GainFactor) * p.Abundance(kind)
	if extraction > p.Raw[kind] {
		extraction = p.Raw[kind]
	}

	prev := p.Available[kind]

	p.Raw[kind] -= extraction
	p.Available[kind] += extraction - required
	if p.Available[kind] < 0 {
		// Shortfall is absorbed, not carried as debt; starvation shows
		// up through the birth-rate formula instead.
		p.Available[kind] = 0
	}

	if prev == 0 {
		return 0
	}
	return (extraction - required) / prev
}

// Step advances the planet by one simulated day: extraction and
// consumption for each consumable in fixed order, then the population
// update, then orbital motion. Dead planets freeze; the call returns
// without touching any state.
func (p *Planet) Step(base Baseline, tun Tuning) {
	if !p.Alive() {
		return
	}

	before := p.TotalQOL(base, tun)

	for _, kind := range resource.Consumables() {
		p.Rate[kind] = p.mu(kind, base, tun)
	}

	rate := p.BirthRate(base, tun)
	p.Rate[resource.Population] = rate
	p.birth(rate)

	if p.Period > 0 {
		p.Angle = math.Mod(p.Angle+2*math.Pi/p.Period, 2*math.Pi)
	}

	after := p.TotalQOL(base, tun)
	if before == 0 {
		p.QOLRate = 0
	} else {
		p.QOLRate = after/before - 1
	}
}

// Position returns the planet's cartesian position on the orbital plane.
func (p *Planet) Position() (x, y float64) {
	return p.Distance * math.Cos(p.Angle), p.Distance * math.Sin(p.Angle)
}

// DistanceTo returns the Euclidean distance to another planet.
func (p *Planet) DistanceTo(other *Planet) float64 {
	x1, y1 := p.Position()
	x2, y2 := other.Position()
	return math.Hypot(x2-x1, y2-y1)
}
