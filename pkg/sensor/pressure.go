package sensor

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"

	"github.com/oculab/vacutherm/pkg/bus"
)

// CPS610 protocol: write the start command to the command register, wait
// the settle window, then read the three data registers H/M/L as one 24-bit
// two's-complement code. kPa = A*(code/2^23) + B.
const (
	cmdReg   = 0x30
	cmdStart = 0x0A
	dataReg  = 0x06

	rawDivisor = 8388608.0 // 2^23

	calibrationSamples = 10
	calibrationPause   = 100 * time.Millisecond
)

// Pressure reads the capacitive pressure transducer. Owned by the pressure
// task; not safe for concurrent use. Calibration sleeps between bus
// transactions and must not be run while holding any shared lock.
type Pressure struct {
	bus    bus.RegisterBus
	coefA  float32
	coefB  float32
	settle time.Duration

	zeroOffset float32
	lastGood   float32
	errCount   int

	sleep func(time.Duration)
}

// NewPressure creates a driver on the given register bus with the device's
// linear transfer coefficients.
func NewPressure(b bus.RegisterBus, coefA, coefB float32, settle time.Duration) *Pressure {
	return &Pressure{
		bus:    b,
		coefA:  coefA,
		coefB:  coefB,
		settle: settle,
		sleep:  time.Sleep,
	}
}

// Probe triggers one conversion to confirm the transducer answers.
func (p *Pressure) Probe() error {
	if _, err := p.readRaw(); err != nil {
		return fmt.Errorf("pressure probe: %w", err)
	}
	return nil
}

// Read returns the pressure in kPa relative to the calibrated zero.
// Transient faults fail soft exactly as the temperature driver does.
func (p *Pressure) Read() (float32, error) {
	raw, err := p.readRaw()
	if err != nil {
		return p.failSoft(err)
	}

	kPa := p.convert(raw)
	p.errCount = 0
	p.lastGood = kPa
	return kPa, nil
}

// IsValid reports whether the driver currently produces usable values.
func (p *Pressure) IsValid() bool {
	return p.errCount < MaxErrorCount && !math32.IsNaN(p.lastGood)
}

// LastValue returns the last good pressure.
func (p *Pressure) LastValue() float32 {
	return p.lastGood
}

// ZeroOffset returns the calibrated zero-point bias.
func (p *Pressure) ZeroOffset() float32 {
	return p.zeroOffset
}

// CalibrateZero measures the zero-point bias at known atmospheric
// conditions: ten independent conversion cycles, averaging only the samples
// that decoded (previous offset added back before averaging). With zero
// valid samples the stored offset is left bit-for-bit unchanged and
// ErrCalibration is returned.
func (p *Pressure) CalibrateZero() (float32, error) {
	var sum float32
	count := 0

	for i := 0; i < calibrationSamples; i++ {
		if i > 0 {
			p.sleep(calibrationPause)
		}

		raw, err := p.readRaw()
		if err != nil {
			continue
		}
		sum += p.convert(raw) + p.zeroOffset
		count++
	}

	if count == 0 {
		return p.zeroOffset, ErrCalibration
	}

	p.zeroOffset = sum / float32(count)
	return p.zeroOffset, nil
}

// readRaw runs one conversion cycle: trigger, settle, read three data
// bytes, sign-extend the 24-bit code.
func (p *Pressure) readRaw() (int32, error) {
	if err := p.bus.WriteReg(cmdReg, cmdStart); err != nil {
		return 0, fmt.Errorf("start conversion: %w", err)
	}

	p.sleep(p.settle)

	var b [3]byte
	if err := p.bus.ReadRegs(dataReg, b[:]); err != nil {
		return 0, fmt.Errorf("read data registers: %w", err)
	}

	raw := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int32(raw), nil
}

// convert applies the linear transfer function and the calibrated zero.
func (p *Pressure) convert(raw int32) float32 {
	code := float32(raw) / rawDivisor
	return p.coefA*code + p.coefB - p.zeroOffset
}

func (p *Pressure) failSoft(cause error) (float32, error) {
	p.errCount++
	if p.errCount < MaxErrorCount {
		return p.lastGood, nil
	}
	return math32.NaN(), fmt.Errorf("%w: %w", ErrUnavailable, cause)
}
