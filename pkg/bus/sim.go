package bus

import (
	"fmt"
	"sync"
	"time"
)

// PlantConfig parameterizes the simulated plant.
type PlantConfig struct {
	AmbientC   float32
	HeatRate   float32 // °C/s at full heat duty
	CoolRate   float32 // 1/s decay toward ambient
	AmbientKPa float32
	PumpRate   float32 // kPa/s toward vacuum at full pump duty
	LeakRate   float32 // 1/s decay toward ambient pressure
	FailEvery  int     // inject a bus fault on every Nth read (0 = never)

	// Pressure transfer coefficients, must match the driver's.
	CoefA float32
	CoefB float32
}

// Plant simulates the device: a first-order thermal model behind a
// thermocouple frame bus and a pneumatic model behind the transducer's
// register bus, both driven by the duty the controllers apply. It lets the
// whole control core run without hardware (-mock).
type Plant struct {
	cfg PlantConfig

	mu       sync.Mutex
	tempC    float32
	kPa      float32
	heatDuty uint8
	pumpDuty uint8
	last     time.Time

	latchedRaw int32 // conversion result captured at trigger time
	reads      int
}

var (
	_ RegisterBus = (*PlantPressurePort)(nil)
	_ FrameBus    = (*PlantThermoPort)(nil)
)

// NewPlant creates a plant resting at ambient conditions.
func NewPlant(cfg PlantConfig, now time.Time) *Plant {
	return &Plant{
		cfg:   cfg,
		tempC: cfg.AmbientC,
		kPa:   cfg.AmbientKPa,
		last:  now,
	}
}

// SetHeatDuty applies the heating actuator command.
func (p *Plant) SetHeatDuty(duty uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step(time.Now())
	p.heatDuty = duty
	return nil
}

// SetPumpDuty applies the pump actuator command.
func (p *Plant) SetPumpDuty(duty uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step(time.Now())
	p.pumpDuty = duty
	return nil
}

// PressurePort returns the transducer's register-bus view of the plant.
func (p *Plant) PressurePort() *PlantPressurePort { return &PlantPressurePort{p: p} }

// ThermoPort returns the thermocouple converter's frame-bus view.
func (p *Plant) ThermoPort() *PlantThermoPort { return &PlantThermoPort{p: p} }

// step advances the first-order models to now. Caller holds p.mu.
func (p *Plant) step(now time.Time) {
	dt := float32(now.Sub(p.last).Seconds())
	if dt <= 0 {
		return
	}
	p.last = now

	p.tempC += p.cfg.HeatRate*(float32(p.heatDuty)/255)*dt - p.cfg.CoolRate*(p.tempC-p.cfg.AmbientC)*dt
	p.kPa += -p.cfg.PumpRate*(float32(p.pumpDuty)/255)*dt - p.cfg.LeakRate*(p.kPa-p.cfg.AmbientKPa)*dt
}

// failNow implements the scripted fault injection. Caller holds p.mu.
func (p *Plant) failNow() bool {
	p.reads++
	return p.cfg.FailEvery > 0 && p.reads%p.cfg.FailEvery == 0
}

// PlantPressurePort exposes the plant as a CPS610-style register device:
// a start command latches a conversion, the data registers answer with the
// latched 24-bit code.
type PlantPressurePort struct {
	p *Plant
}

// WriteReg latches a conversion on the start command; other writes are
// accepted and ignored, as the real part does.
func (pp *PlantPressurePort) WriteReg(reg, value byte) error {
	p := pp.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNow() {
		return fmt.Errorf("%w: simulated i2c fault", ErrBus)
	}

	p.step(time.Now())
	code := (p.kPa - p.cfg.CoefB) / p.cfg.CoefA
	raw := int32(code * 8388608)
	if raw > 0x7FFFFF {
		raw = 0x7FFFFF
	}
	if raw < -0x800000 {
		raw = -0x800000
	}
	p.latchedRaw = raw
	return nil
}

// ReadRegs answers with the latched conversion, MSB first.
func (pp *PlantPressurePort) ReadRegs(reg byte, buf []byte) error {
	p := pp.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNow() {
		return fmt.Errorf("%w: simulated i2c fault", ErrBus)
	}
	if len(buf) < 3 {
		return fmt.Errorf("%w: short buffer", ErrBus)
	}

	raw := uint32(p.latchedRaw) & 0xFFFFFF
	buf[0] = byte(raw >> 16)
	buf[1] = byte(raw >> 8)
	buf[2] = byte(raw)
	return nil
}

// Close is a no-op for the simulated port.
func (pp *PlantPressurePort) Close() error { return nil }

// PlantThermoPort exposes the plant as a MAX31855-style frame device.
type PlantThermoPort struct {
	p *Plant
}

// ReadFrame encodes the current plant temperature as a fault-free frame:
// 14-bit thermocouple value at 0.25°C/LSB, ambient as the reference
// junction at 0.0625°C/LSB.
func (tp *PlantThermoPort) ReadFrame() (uint32, error) {
	p := tp.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNow() {
		return 0, fmt.Errorf("%w: simulated spi fault", ErrBus)
	}

	p.step(time.Now())
	tc := uint32(int32(p.tempC*4)) & 0x3FFF
	ref := uint32(int32(p.cfg.AmbientC*16)) & 0xFFF
	return tc<<18 | ref<<4, nil
}

// Close is a no-op for the simulated port.
func (tp *PlantThermoPort) Close() error { return nil }
