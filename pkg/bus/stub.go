//go:build !linux

package bus

import "errors"

// I2CDevice is not available on non-Linux platforms.
type I2CDevice struct{}

// OpenI2C returns an error on non-Linux platforms.
func OpenI2C(name string, addr uint16) (*I2CDevice, error) {
	return nil, errors.New("bus: i2c not supported on this platform (requires Linux)")
}

func (d *I2CDevice) WriteReg(reg, value byte) error       { return errors.New("bus: not supported") }
func (d *I2CDevice) ReadRegs(reg byte, buf []byte) error  { return errors.New("bus: not supported") }
func (d *I2CDevice) Close() error                         { return nil }

// SPIDevice is not available on non-Linux platforms.
type SPIDevice struct{}

// OpenSPI returns an error on non-Linux platforms.
func OpenSPI(name string) (*SPIDevice, error) {
	return nil, errors.New("bus: spi not supported on this platform (requires Linux)")
}

func (d *SPIDevice) ReadFrame() (uint32, error) { return 0, errors.New("bus: not supported") }
func (d *SPIDevice) Close() error               { return nil }
