package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
	"github.com/arlstone/orrery/internal/trade"
)

// PlanetReport is the per-planet snapshot handed to presentation layers.
type PlanetReport struct {
	Name       string                    `json:"name"`
	Alive      bool                      `json:"alive"`
	Population float64                   `json:"population"`
	Angle      float64                   `json:"angle"`
	X          float64                   `json:"x"`
	Y          float64                   `json:"y"`
	Available  resource.Vector           `json:"available"`
	Raw        resource.Vector           `json:"raw"`
	Rate       resource.Vector           `json:"rate"`
	Abundance  map[resource.Kind]float64 `json:"abundance"`
	QOL        float64                   `json:"qol"`
	QOLRate    float64                   `json:"qol_rate"`
}

// InspectReport pairs a planet snapshot with optional second-planet
// context: separation and the net standing flow between the two.
type InspectReport struct {
	Planet   PlanetReport    `json:"planet"`
	Other    *PlanetReport   `json:"other,omitempty"`
	Distance float64         `json:"distance,omitempty"`
	Net      resource.Vector `json:"net,omitempty"`
}

// Report builds the display snapshot for one planet.
func (s *Simulation) Report(p *planet.Planet) PlanetReport {
	x, y := p.Position()
	r := PlanetReport{
		Name:       p.Name,
		Alive:      p.Alive(),
		Population: p.Population(),
		Angle:      p.Angle,
		X:          x,
		Y:          y,
		Available:  p.Available.Clone(),
		Raw:        p.Raw.Clone(),
		Rate:       p.Rate.Clone(),
		Abundance:  make(map[resource.Kind]float64, 3),
		QOLRate:    p.QOLRate,
	}
	for _, kind := range resource.Consumables() {
		r.Abundance[kind] = p.Abundance(kind)
	}
	if p.Alive() {
		r.QOL = p.TotalQOL(s.Baseline, s.Tuning)
	}
	return r
}

// Inspect returns the snapshot for one planet, with pair context when a
// second name is given. Unknown names are invalid commands: reported to
// the caller, nothing mutated.
func (s *Simulation) Inspect(name, second string) (InspectReport, error) {
	p, ok := s.Index[name]
	if !ok {
		return InspectReport{}, fmt.Errorf("%w: planet %q not found", ErrInvalidCommand, name)
	}

	rep := InspectReport{Planet: s.Report(p)}
	if second == "" {
		return rep, nil
	}

	q, ok := s.Index[second]
	if !ok {
		return InspectReport{}, fmt.Errorf("%w: planet %q not found", ErrInvalidCommand, second)
	}

	other := s.Report(q)
	rep.Other = &other
	rep.Distance = p.DistanceTo(q)
	rep.Net = s.Ledger.Net(name, second)
	return rep, nil
}

// SubmitTransfer validates and registers a standing annual flow between
// two planets, returning a confirmation line. The ledger itself accepts
// anything, so every check lives here.
func (s *Simulation) SubmitTransfer(kindName string, amount float64, fromName, toName string) (string, error) {
	kind, ok := resource.ParseKind(kindName)
	if !ok {
		return "", fmt.Errorf("%w: unknown resource %q", ErrInvalidCommand, kindName)
	}
	if math.IsNaN(amount) || amount <= 0 {
		return "", fmt.Errorf("%w: transfer amount must be positive, got %v", ErrInvalidCommand, amount)
	}
	if _, ok := s.Index[fromName]; !ok {
		return "", fmt.Errorf("%w: planet %q not found", ErrInvalidCommand, fromName)
	}
	if _, ok := s.Index[toName]; !ok {
		return "", fmt.Errorf("%w: planet %q not found", ErrInvalidCommand, toName)
	}
	if fromName == toName {
		return "", fmt.Errorf("%w: cannot transfer from %q to itself", ErrInvalidCommand, fromName)
	}

	tr := trade.NewTransfer(fromName, toName, resource.Vector{kind: amount})
	s.Ledger.Apply(tr)

	desc := fmt.Sprintf("Standing transfer opened: %g %s a year from %s to %s",
		amount, kind, fromName, toName)
	s.EmitEvent(Event{
		Day:         s.Day,
		Description: desc,
		Category:    "transfer",
		Meta: map[string]any{
			"transfer_id": tr.ID,
			"resource":    string(kind),
			"annual":      amount,
			"from":        fromName,
			"to":          toName,
		},
	})

	slog.Info("transfer registered",
		"id", tr.ID, "resource", kind, "annual", amount, "from", fromName, "to", toName)
	return desc, nil
}

// CancelTransfer removes a standing flow by ID.
func (s *Simulation) CancelTransfer(id string) (string, error) {
	if !s.Ledger.Remove(id) {
		return "", fmt.Errorf("%w: transfer %q not found", ErrInvalidCommand, id)
	}

	desc := fmt.Sprintf("Standing transfer %s cancelled", id)
	s.EmitEvent(Event{
		Day:         s.Day,
		Description: desc,
		Category:    "transfer",
		Meta:        map[string]any{"transfer_id": id},
	})

	slog.Info("transfer cancelled", "id", id)
	return desc, nil
}
