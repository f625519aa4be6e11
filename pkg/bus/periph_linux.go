//go:build linux

package bus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var initOnce sync.Once

func hostInit() {
	initOnce.Do(func() {
		// Registers the available bus drivers; individual Open calls report
		// their own errors.
		_, _ = host.Init()
	})
}

// I2CDevice talks to one register-addressed device through a periph I2C
// bus. Safe for use from a single task only.
type I2CDevice struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

var _ RegisterBus = (*I2CDevice)(nil)

// OpenI2C opens the named I2C bus and binds the device address.
func OpenI2C(name string, addr uint16) (*I2CDevice, error) {
	hostInit()

	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %s: %w", name, err)
	}

	return &I2CDevice{
		bus: b,
		dev: &i2c.Dev{Addr: addr, Bus: b},
	}, nil
}

// WriteReg writes one byte to the given register.
func (d *I2CDevice) WriteReg(reg, value byte) error {
	if err := d.dev.Tx([]byte{reg, value}, nil); err != nil {
		return fmt.Errorf("%w: i2c write reg 0x%02X: %v", ErrBus, reg, err)
	}
	return nil
}

// ReadRegs reads len(buf) consecutive bytes starting at reg.
func (d *I2CDevice) ReadRegs(reg byte, buf []byte) error {
	if err := d.dev.Tx([]byte{reg}, buf); err != nil {
		return fmt.Errorf("%w: i2c read %d bytes at 0x%02X: %v", ErrBus, len(buf), reg, err)
	}
	return nil
}

// Close releases the underlying bus.
func (d *I2CDevice) Close() error {
	return d.bus.Close()
}

// SPIDevice reads fixed 32-bit frames from a read-only SPI converter.
type SPIDevice struct {
	port spi.PortCloser
	conn spi.Conn
}

var _ FrameBus = (*SPIDevice)(nil)

// OpenSPI opens the named SPI port in mode 0 at a rate the MAX31855-class
// converters accept.
func OpenSPI(name string) (*SPIDevice, error) {
	hostInit()

	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %s: %w", name, err)
	}

	c, err := p.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("configure spi port %s: %w", name, err)
	}

	return &SPIDevice{port: p, conn: c}, nil
}

// ReadFrame clocks out one 32-bit frame, MSB first. The converter ignores
// MOSI, so zeros are shifted out.
func (d *SPIDevice) ReadFrame() (uint32, error) {
	var rx [4]byte
	if err := d.conn.Tx(make([]byte, 4), rx[:]); err != nil {
		return 0, fmt.Errorf("%w: spi frame read: %v", ErrBus, err)
	}
	return uint32(rx[0])<<24 | uint32(rx[1])<<16 | uint32(rx[2])<<8 | uint32(rx[3]), nil
}

// Close releases the underlying port.
func (d *SPIDevice) Close() error {
	return d.port.Close()
}
