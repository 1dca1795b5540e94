package forecast

import "time"

// Clock provides the current time. Prediction and job lifecycle logic never
// read the hardware clock directly so tests can pin "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production Clock backed by time.Now.
var SystemClock Clock = systemClock{}
