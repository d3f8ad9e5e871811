package metrics

import (
	"math"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// DriveEffort is the mean absolute value of the drive sample fed at each
// step: the input in driven runs, the control in closed-loop runs.
type DriveEffort struct {
	name    string
	sum     float64
	samples int
}

func NewDriveEffort() *DriveEffort {
	return &DriveEffort{
		name: "drive_effort",
	}
}

func (c *DriveEffort) Name() string {
	return c.name
}

func (c *DriveEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) == 0 {
		c.samples++
		return
	}
	s := 0.0
	for _, val := range u {
		s += math.Abs(val)
	}
	c.sum += s / float64(len(u))
	c.samples++
}

func (c *DriveEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *DriveEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
