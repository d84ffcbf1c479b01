// Package resource defines the tracked resource kinds and the vector
// arithmetic shared by planets and transfers.
package resource

// Kind identifies one tracked resource.
type Kind string

const (
	Water      Kind = "water"
	Food       Kind = "food"
	Energy     Kind = "energy"
	Population Kind = "population"
)

// Kinds returns every tracked kind in canonical order.
func Kinds() []Kind {
	return []Kind{Water, Food, Energy, Population}
}

// Consumables returns the kinds subject to daily extraction and
// consumption, in the order the daily update runs them.
func Consumables() []Kind {
	return []Kind{Water, Food, Energy}
}

// ParseKind maps a resource name to its Kind.
func ParseKind(name string) (Kind, bool) {
	switch Kind(name) {
	case Water, Food, Energy, Population:
		return Kind(name), true
	}
	return "", false
}

// Vector is a fixed-key mapping of resource kind to quantity.
// Population is conceptually an integer count; the other kinds are
// continuous. Quantities are non-negative by convention: the planet
// update rules clamp, the type does not.
type Vector map[Kind]float64

// Zero returns a vector with every tracked kind at 0.
func Zero() Vector {
	v := make(Vector, 4)
	for _, k := range Kinds() {
		v[k] = 0
	}
	return v
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, q := range v {
		out[k] = q
	}
	return out
}

// Invert returns the element-wise negation of v, leaving v untouched.
// An outgoing flow is the inverted mirror of the incoming one.
func (v Vector) Invert() Vector {
	out := make(Vector, len(v))
	for k, q := range v {
		out[k] = -q
	}
	return out
}

// Add returns v + other element-wise over the union of keys.
func (v Vector) Add(other Vector) Vector {
	out := v.Clone()
	for k, q := range other {
		out[k] += q
	}
	return out
}

// Scale returns v with every quantity multiplied by f.
func (v Vector) Scale(f float64) Vector {
	out := make(Vector, len(v))
	for k, q := range v {
		out[k] = q * f
	}
	return out
}
