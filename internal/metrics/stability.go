package metrics

import (
	"math"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// TanhBound is the magnitude no component of a tanh reservoir state can
// reach while the integration is sound.
const TanhBound = 1.0

// Stability watches the tanh bound. Its value is the share of observed
// states with every |r_i| below the bound; it also remembers where the
// bound was first reached.
type Stability struct {
	bound  float64
	inside int
	seen   int

	firstStep int
	firstNode int
	firstTime float64
	peak      float64
}

// NewStability returns a Stability checking |r_i| < bound. Standard uses
// TanhBound.
func NewStability(bound float64) *Stability {
	s := &Stability{bound: bound}
	s.Reset()
	return s
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	breach := -1
	for i, r := range x {
		a := math.Abs(r)
		if a > s.peak || math.IsNaN(a) {
			s.peak = a
		}
		if breach < 0 && !(a < s.bound) {
			breach = i
		}
	}
	if breach < 0 {
		s.inside++
	} else if s.firstStep < 0 {
		s.firstStep, s.firstNode, s.firstTime = s.seen, breach, t
	}
	s.seen++
}

func (s *Stability) Value() float64 {
	if s.seen == 0 {
		return 1.0
	}
	return float64(s.inside) / float64(s.seen)
}

// FirstBreach returns the observation index, node and time at which some
// |r_i| first reached the bound. step is -1 when the bound has held.
func (s *Stability) FirstBreach() (step, node int, t float64) {
	return s.firstStep, s.firstNode, s.firstTime
}

// Peak is the largest |r_i| observed, or NaN once a NaN component was seen.
func (s *Stability) Peak() float64 { return s.peak }

// Breakdown reports the time of the first breach, if there was one.
func (s *Stability) Breakdown() map[string]float64 {
	if s.firstStep < 0 {
		return nil
	}
	return map[string]float64{"stability_first_breach_t": s.firstTime}
}

func (s *Stability) Reset() {
	s.inside, s.seen = 0, 0
	s.firstStep, s.firstNode, s.firstTime = -1, -1, 0
	s.peak = 0
}
