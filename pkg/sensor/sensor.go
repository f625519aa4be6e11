// Package sensor decodes the bus-level protocols of the thermocouple
// converter and the capacitive pressure transducer into physical units, and
// owns the fail-soft policy for transient bus faults.
package sensor

import "errors"

// MaxErrorCount is the number of consecutive failed reads after which a
// driver stops failing soft and reports itself unavailable.
const MaxErrorCount = 3

var (
	// ErrUnavailable is returned once MaxErrorCount consecutive reads have
	// failed. The system keeps running degraded; the next good read clears
	// the condition.
	ErrUnavailable = errors.New("sensor unavailable")

	// ErrCalibration is returned when a zero calibration produced no valid
	// samples. The stored offset is left untouched.
	ErrCalibration = errors.New("calibration failed: no valid samples")
)

// Driver is the capability the control loops consume. Read fails soft on
// transient faults: below MaxErrorCount consecutive failures it returns the
// last good value and a nil error.
type Driver interface {
	Read() (float32, error)
	IsValid() bool
	LastValue() float32
}

var (
	_ Driver = (*Temperature)(nil)
	_ Driver = (*Pressure)(nil)
)
