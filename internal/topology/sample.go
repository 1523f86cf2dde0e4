package topology

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/rootsoil/internal/domain"
)

// Sampling is a truncated normal over slot indices. Lo and Hi may exceed
// Slots-1; indices wrap around the circle.
type Sampling struct {
	Mean  float64 `yaml:"mean"`
	Sigma float64 `yaml:"sigma"`
	Lo    int     `yaml:"lo"`
	Hi    int     `yaml:"hi"`
}

// maxDraws bounds rejection sampling before falling back to a uniform pick
// among the resolved slots in range.
const maxDraws = 256

// DownSampling centres the draw on straight down (270°) and allows the
// sectors from 180° to 360°.
func DownSampling() Sampling {
	return Sampling{Mean: 4.5, Sigma: 0.5, Lo: 3, Hi: 6}
}

// Validate checks the range and spread.
func (s Sampling) Validate() error {
	if s.Lo < 0 || s.Hi < s.Lo || s.Hi-s.Lo >= Slots {
		return fmt.Errorf("slot range [%d, %d]: %w", s.Lo, s.Hi, domain.ErrOutOfRange)
	}
	if s.Sigma <= 0 || math.IsNaN(s.Mean) {
		return fmt.Errorf("slot sampling mean %g sigma %g: %w", s.Mean, s.Sigma, domain.ErrOutOfRange)
	}
	return nil
}

// SampleNeighbor draws a slot index from s, redrawing until it lands in
// [Lo, Hi] on a resolved slot of key. It returns false when key is unknown
// or has no resolved slot in the range.
func (g *Graph) SampleNeighbor(key string, s Sampling, rng *rand.Rand) (Slot, bool) {
	e, ok := g.entries[key]
	if !ok {
		return Slot{}, false
	}
	var inRange []int
	for i := s.Lo; i <= s.Hi; i++ {
		if e[i%Slots].Resolved() {
			inRange = append(inRange, i%Slots)
		}
	}
	if len(inRange) == 0 {
		return Slot{}, false
	}

	for draw := 0; draw < maxDraws; draw++ {
		idx := int(math.Round(rng.NormFloat64()*s.Sigma + s.Mean))
		if idx < s.Lo || idx > s.Hi {
			continue
		}
		if slot := e[idx%Slots]; slot.Resolved() {
			return slot, true
		}
	}
	return e[inRange[rng.Intn(len(inRange))]], true
}
