package planet

import (
	"math"

	"github.com/arlstone/orrery/internal/resource"
)

// Quench measures hydration comfort against the reference baseline.
// Positive means the per-capita water stock exceeds the comfort
// threshold; negative triggers dehydration die-off.
func (p *Planet) Quench(base Baseline, tun Tuning) float64 {
	ratio := 0.0
	if base.WaterPerCapita > 0 {
		ratio = p.PerCapita(resource.Water) / base.WaterPerCapita
	}
	return math.Sqrt(ratio) - tun.ThirstFactor
}

// Fullness measures satiety comfort against the reference baseline.
func (p *Planet) Fullness(base Baseline, tun Tuning) float64 {
	ratio := 0.0
	if base.FoodPerCapita > 0 {
		ratio = p.PerCapita(resource.Food) / base.FoodPerCapita
	}
	return math.Sqrt(ratio) - tun.HungerFactor
}

// QOLPerCapita is the per-inhabitant comfort score, recomputed from the
// current stocks on every call. Dead planets score 0 by definition.
func (p *Planet) QOLPerCapita(base Baseline, tun Tuning) float64 {
	if !p.Alive() {
		return 0
	}
	return p.Quench(base, tun) + p.Fullness(base, tun)
}

// Productivity normalizes the planet's QOL per capita against the
// reference planet's.
func (p *Planet) Productivity(base Baseline, tun Tuning) float64 {
	if base.QOLPerCapita == 0 {
		return 0
	}
	return p.QOLPerCapita(base, tun) / base.QOLPerCapita
}

// TotalQOL is the planet's welfare contribution: QOL per capita times
// population.
func (p *Planet) TotalQOL(base Baseline, tun Tuning) float64 {
	return p.QOLPerCapita(base, tun) * p.Population()
}

// BirthRate returns the day's fractional population change. Dehydration
// and starvation each force a fixed die-off regardless of severity;
// otherwise growth is quadratic in productivity with its sign preserved,
// so an uncomfortable planet shrinks even while fed and watered.
func (p *Planet) BirthRate(base Baseline, tun Tuning) float64 {
	if p.Quench(base, tun) < 0 {
		return -tun.QuenchDieOff
	}
	if p.Fullness(base, tun) < 0 {
		return -tun.HungerDieOff
	}

	prod := p.Productivity(base, tun)
	rate := prod * prod * tun.BirthRateConstant
	if prod < 0 {
		rate = -rate
	}
	return rate
}

// birth applies the day's population change: one individual of baseline
// attrition, then growth on the remainder, rounded to a whole count.
// The attrition applies even under positive rates, so very small
// populations can still dwindle.
func (p *Planet) birth(rate float64) {
	next := math.Round((p.Population() - 1) * (1 + rate))
	if next < 0 {
		next = 0
	}
	p.Available[resource.Population] = next
}
