package fallback

import "math"

// Generator constants. Changing any of them changes every simulated reading.
const (
	multiplier = 9301
	increment  = 49297
	modulus    = 233280
)

// Generator is a linear congruential generator producing floats in [0, 1).
// It is not safe for concurrent use; create one per simulation.
type Generator struct {
	state int64
}

// NewGenerator returns a Generator starting from seed.
func NewGenerator(seed int64) *Generator {
	s := seed % modulus
	if s < 0 {
		s += modulus
	}
	return &Generator{state: s}
}

// Next advances the generator and returns the new state scaled to [0, 1).
func (g *Generator) Next() float64 {
	g.state = (g.state*multiplier + increment) % modulus
	return float64(g.state) / modulus
}

// Seed derives the generator seed for a location: floor((lat + lon) * 1000),
// reduced modulo the generator modulus. The reduction leaves the draw
// sequence unchanged and keeps the value in range for any finite input.
// Non-finite coordinates map to seed 0.
func Seed(lat, lon float64) int64 {
	raw := math.Floor((lat + lon) * 1000)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	s := math.Mod(raw, modulus)
	if s < 0 {
		s += modulus
	}
	return int64(s)
}
