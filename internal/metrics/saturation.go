package metrics

import (
	"math"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// SaturationLevel is the |r| above which a node counts as saturated.
const SaturationLevel = 0.95

// Saturation is the mean fraction of nodes sitting in the flat tails of tanh.
type Saturation struct {
	name    string
	level   float64
	sum     float64
	samples int
}

func NewSaturation() *Saturation {
	return &Saturation{
		name:  "saturation",
		level: SaturationLevel,
	}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	saturated := 0
	for _, v := range x {
		if math.Abs(v) > s.level {
			saturated++
		}
	}
	s.sum += float64(saturated) / float64(len(x))
	s.samples++
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.sum / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.sum = 0
	s.samples = 0
}
