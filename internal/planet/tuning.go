package planet

import "github.com/arlstone/orrery/internal/resource"

// Tuning holds the balance knobs for the daily update rules. All rates
// are per simulated day unless noted.
type Tuning struct {
	// GainFactor is the mining efficiency margin above bare need.
	GainFactor float64 `yaml:"gain_factor" json:"gain_factor"`
	// ThirstFactor offsets the square-root hydration comfort curve.
	ThirstFactor float64 `yaml:"thirst_factor" json:"thirst_factor"`
	// HungerFactor offsets the square-root satiety comfort curve.
	HungerFactor float64 `yaml:"hunger_factor" json:"hunger_factor"`
	// QuenchDieOff is the population loss rate under dehydration.
	QuenchDieOff float64 `yaml:"quench_die_off" json:"quench_die_off"`
	// HungerDieOff is the population loss rate under starvation.
	HungerDieOff float64 `yaml:"hunger_die_off" json:"hunger_die_off"`
	// BirthRateConstant scales productivity-driven growth.
	BirthRateConstant float64 `yaml:"birth_rate_constant" json:"birth_rate_constant"`
	// TransferFactor is the per-distance-unit transit loss on transfers.
	TransferFactor float64 `yaml:"transfer_factor" json:"transfer_factor"`
	// DaysPerYear converts annual transfer rates to daily amounts.
	DaysPerYear float64 `yaml:"days_per_year" json:"days_per_year"`
}

// DefaultTuning returns the standard balance values.
func DefaultTuning() Tuning {
	return Tuning{
		GainFactor:        0.001,
		ThirstFactor:      0.5,
		HungerFactor:      0.5,
		QuenchDieOff:      0.25,
		HungerDieOff:      0.25,
		BirthRateConstant: 1.05e-3,
		TransferFactor:    2e-6,
		DaysPerYear:       365,
	}
}

// Baseline carries the reference planet's per-capita constants. Every
// planet's consumption and comfort formulas are normalized against these,
// so all populations are held to the same standard of living. The
// reference planet itself never advances in time; the constants derive
// from its canonical endowment.
type Baseline struct {
	WaterPerCapita  float64 `json:"water_per_capita"`
	FoodPerCapita   float64 `json:"food_per_capita"`
	EnergyPerCapita float64 `json:"energy_per_capita"`
	// QOLPerCapita is the comfort score of a planet sitting exactly at
	// baseline: quench and fullness each contribute 1 minus their
	// comfort factor.
	QOLPerCapita float64 `json:"qol_per_capita"`
}

// NewBaseline derives per-capita constants from a reference endowment.
func NewBaseline(endowment resource.Vector, tun Tuning) Baseline {
	b := Baseline{
		QOLPerCapita: (1 - tun.ThirstFactor) + (1 - tun.HungerFactor),
	}
	pop := endowment[resource.Population]
	if pop <= 0 {
		return b
	}
	b.WaterPerCapita = endowment[resource.Water] / pop
	b.FoodPerCapita = endowment[resource.Food] / pop
	b.EnergyPerCapita = endowment[resource.Energy] / pop
	return b
}

// PerCapita returns the reference constant for a consumable kind.
func (b Baseline) PerCapita(kind resource.Kind) float64 {
	switch kind {
	case resource.Water:
		return b.WaterPerCapita
	case resource.Food:
		return b.FoodPerCapita
	case resource.Energy:
		return b.EnergyPerCapita
	}
	return 0
}

// ReferenceEndowment is the canonical endowment behind DefaultBaseline:
// one thousand units of each consumable per inhabitant.
func ReferenceEndowment() resource.Vector {
	return resource.Vector{
		resource.Water:      1e9,
		resource.Food:       1e9,
		resource.Energy:     1e9,
		resource.Population: 1e6,
	}
}

// DefaultBaseline returns the baseline derived from the canonical
// reference endowment at default tuning.
func DefaultBaseline() Baseline {
	return NewBaseline(ReferenceEndowment(), DefaultTuning())
}
