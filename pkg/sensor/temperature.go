package sensor

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/oculab/vacutherm/pkg/bus"
)

// MAX31855 frame layout: D[31:18] 14-bit signed thermocouple temperature
// (0.25°C/LSB), D16 fault summary, D[15:4] 12-bit signed reference-junction
// temperature (0.0625°C/LSB), D2 short-to-VCC, D1 short-to-GND, D0 open
// thermocouple.
const (
	frameFault    = 1 << 16
	faultShortVCC = 1 << 2
	faultShortGND = 1 << 1
	faultOpen     = 1 << 0
)

var (
	ErrOpenCircuit = errors.New("thermocouple open circuit")
	ErrShortGND    = errors.New("thermocouple shorted to ground")
	ErrShortVCC    = errors.New("thermocouple shorted to vcc")
)

// Temperature reads the K-type thermocouple behind a MAX31855 converter.
// Owned by the temperature task; not safe for concurrent use.
type Temperature struct {
	bus bus.FrameBus

	lastGood float32
	errCount int
}

// NewTemperature creates a driver on the given frame bus.
func NewTemperature(b bus.FrameBus) *Temperature {
	return &Temperature{bus: b}
}

// Probe performs one read to confirm the converter answers. Used at
// startup; a failure is reported, never fatal.
func (t *Temperature) Probe() error {
	frame, err := t.bus.ReadFrame()
	if err != nil {
		return fmt.Errorf("temperature probe: %w", err)
	}
	if _, err := decodeThermocouple(frame); err != nil {
		return fmt.Errorf("temperature probe: %w", err)
	}
	return nil
}

// Read returns the thermocouple temperature in °C. Transient faults fail
// soft: below MaxErrorCount consecutive failures the last good value is
// returned with a nil error; at the threshold Read reports NaN and
// ErrUnavailable until a read succeeds again.
func (t *Temperature) Read() (float32, error) {
	frame, err := t.bus.ReadFrame()
	if err != nil {
		return t.failSoft(err)
	}

	temp, err := decodeThermocouple(frame)
	if err != nil {
		return t.failSoft(err)
	}

	t.errCount = 0
	t.lastGood = temp
	return temp, nil
}

// ReadInternal returns the converter's reference-junction temperature. It
// shares the bus but not the fail-soft state; a failed read is just an
// error.
func (t *Temperature) ReadInternal() (float32, error) {
	frame, err := t.bus.ReadFrame()
	if err != nil {
		return math32.NaN(), err
	}
	return decodeInternal(frame), nil
}

// IsValid reports whether the driver currently produces usable values.
func (t *Temperature) IsValid() bool {
	return t.errCount < MaxErrorCount && !math32.IsNaN(t.lastGood)
}

// LastValue returns the last good temperature.
func (t *Temperature) LastValue() float32 {
	return t.lastGood
}

func (t *Temperature) failSoft(cause error) (float32, error) {
	t.errCount++
	if t.errCount < MaxErrorCount {
		return t.lastGood, nil
	}
	return math32.NaN(), fmt.Errorf("%w: %w", ErrUnavailable, cause)
}

// decodeThermocouple extracts the 14-bit thermocouple reading, rejecting
// fault frames.
func decodeThermocouple(frame uint32) (float32, error) {
	if frame&frameFault != 0 || frame&(faultShortVCC|faultShortGND|faultOpen) != 0 {
		switch {
		case frame&faultOpen != 0:
			return math32.NaN(), ErrOpenCircuit
		case frame&faultShortGND != 0:
			return math32.NaN(), ErrShortGND
		case frame&faultShortVCC != 0:
			return math32.NaN(), ErrShortVCC
		default:
			return math32.NaN(), errors.New("thermocouple fault")
		}
	}

	raw := int32(frame >> 18)
	if raw&0x2000 != 0 {
		raw -= 0x4000
	}
	return float32(raw) * 0.25, nil
}

// decodeInternal extracts the 12-bit reference-junction reading.
func decodeInternal(frame uint32) float32 {
	raw := int32((frame >> 4) & 0xFFF)
	if raw&0x800 != 0 {
		raw -= 0x1000
	}
	return float32(raw) * 0.0625
}
