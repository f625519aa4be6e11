// Package bus defines the narrow bus capabilities the sensor drivers need
// and provides implementations for real hardware (periph.io, Linux), for
// tests (scripted fakes), and for development without a device (simulated
// plant). Raw bus setup beyond opening a named channel is out of scope;
// drivers only ever see "write a register" and "read raw bytes".
package bus

import "errors"

// ErrBus marks a failed bus transaction. Drivers treat any wrapped ErrBus
// as a transient fault and apply their own fail-soft policy.
var ErrBus = errors.New("bus transaction failed")

// RegisterBus is a register-addressed device on a shared serial bus (the
// pressure transducer's I2C view).
type RegisterBus interface {
	// WriteReg writes a single command byte to a register.
	WriteReg(reg, value byte) error
	// ReadRegs reads len(buf) consecutive bytes starting at reg.
	ReadRegs(reg byte, buf []byte) error
	Close() error
}

// FrameBus is a device that answers every transaction with one fixed-size
// raw frame (the thermocouple converter's SPI view).
type FrameBus interface {
	// ReadFrame clocks out one 32-bit frame, most significant byte first.
	ReadFrame() (uint32, error)
	Close() error
}
