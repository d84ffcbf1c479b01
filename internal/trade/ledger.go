// Package trade implements the standing transfer ledger: annually rated
// resource flows between planet pairs, applied once per simulated day
// after every planet has stepped.
package trade

import (
	"github.com/google/uuid"

	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
)

// PlanetStore resolves names to the single authoritative planet records.
// The ledger holds names only, never planet copies, so it can never
// diverge from the driver's view of the system.
type PlanetStore interface {
	Planet(name string) (*planet.Planet, bool)
}

// Transfer is one standing flow: an annual rate of resources moving from
// one planet to another. Transfers are additive; registering the same
// pair twice creates two independent flows that both execute daily.
type Transfer struct {
	ID     string          `json:"id"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Annual resource.Vector `json:"annual"`
}

// NewTransfer builds a transfer with a fresh ID. No validation happens
// here; the command surface owns that.
func NewTransfer(from, to string, annual resource.Vector) Transfer {
	return Transfer{
		ID:     uuid.NewString(),
		From:   from,
		To:     to,
		Annual: annual.Clone(),
	}
}

// Ledger is the registry of active standing transfers.
type Ledger struct {
	transfers []Transfer
	tuning    planet.Tuning
}

// NewLedger returns an empty ledger using the given tuning for year
// length and transit loss.
func NewLedger(tun planet.Tuning) *Ledger {
	return &Ledger{tuning: tun}
}

// Apply registers a standing flow.
func (l *Ledger) Apply(t Transfer) {
	l.transfers = append(l.transfers, t)
}

// Remove deletes the transfer with the given ID, reporting whether it
// was present.
func (l *Ledger) Remove(id string) bool {
	for i, t := range l.transfers {
		if t.ID == id {
			l.transfers = append(l.transfers[:i], l.transfers[i+1:]...)
			return true
		}
	}
	return false
}

// Transfers returns a copy of the active transfer list.
func (l *Ledger) Transfers() []Transfer {
	out := make([]Transfer, len(l.transfers))
	copy(out, l.transfers)
	return out
}

// Count returns the number of active transfers.
func (l *Ledger) Count() int {
	return len(l.transfers)
}

// Forward executes one day of every standing flow. Each transfer moves
// its annual rate divided by the year length, clamped to what the source
// actually holds (a short source makes a partial transfer that day).
// Transit destroys a share of the moved amount proportional to the
// current distance between the pair; the loss is never refunded.
func (l *Ledger) Forward(store PlanetStore) {
	for _, t := range l.transfers {
		from, ok := store.Planet(t.From)
		if !ok {
			continue
		}
		to, ok := store.Planet(t.To)
		if !ok {
			continue
		}

		lossShare := l.tuning.TransferFactor * from.DistanceTo(to)

		for kind, annual := range t.Annual {
			daily := annual / l.tuning.DaysPerYear
			if daily <= 0 {
				continue
			}

			moved := daily
			if avail := from.Available[kind]; moved > avail {
				moved = avail
			}
			if moved <= 0 {
				continue
			}

			delivered := moved * (1 - lossShare)
			if delivered < 0 {
				// Far enough that everything burns up in transit.
				delivered = 0
			}

			from.Available[kind] -= moved
			to.Available[kind] += delivered
		}
	}
}

// Net aggregates the registered annual flows for the ordered pair: flows
// from a to b count positive, opposing flows fold in as their inverted
// mirror. Display only; no state is touched.
func (l *Ledger) Net(a, b string) resource.Vector {
	net := resource.Zero()
	for _, t := range l.transfers {
		switch {
		case t.From == a && t.To == b:
			net = net.Add(t.Annual)
		case t.From == b && t.To == a:
			net = net.Add(t.Annual.Invert())
		}
	}
	return net
}
