// Package periphhost connects a CC1101 to a hardware SPI port through periph.
// Chip select is driven as a GPIO so the driver can hold it across the ready
// check, and MISO is sampled as a GPIO for the ready signal.
package periphhost

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

type Config struct {
	// SPI port name for spireg, e.g. "/dev/spidev0.0". Empty picks the first.
	SPI string
	// Speed of the SPI clock. The CC1101 accepts up to 6.5MHz for burst
	// access.
	Speed physic.Frequency
	// GPIO names for gpioreg, e.g. "GPIO8".
	CS, MISO, GDO0 string
}

type Port struct {
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinIO
	miso gpio.PinIn
	gdo0 gpio.PinIn
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no GPIO named %q", name)
	}
	return p, nil
}

func Open(c Config) (*Port, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	if c.Speed == 0 {
		c.Speed = physic.MegaHertz
	}

	cs, err := pin(c.CS)
	if err != nil {
		return nil, err
	}
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to drive CS: %w", err)
	}
	miso, err := pin(c.MISO)
	if err != nil {
		return nil, err
	}
	gdo0, err := pin(c.GDO0)
	if err != nil {
		return nil, err
	}
	if err := gdo0.In(gpio.PullDown, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to watch GDO0: %w", err)
	}

	port, err := spireg.Open(c.SPI)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}
	conn, err := port.Connect(c.Speed, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect to SPI port: %w", err)
	}
	return &Port{port: port, conn: conn, cs: cs, miso: miso, gdo0: gdo0}, nil
}

func (p *Port) Tx(w, r []byte) error {
	return p.conn.Tx(w, r)
}

func (p *Port) Select(active bool) error {
	if active {
		return p.cs.Out(gpio.Low)
	}
	return p.cs.Out(gpio.High)
}

func (p *Port) Ready() (bool, error) {
	return p.miso.Read() == gpio.Low, nil
}

func (p *Port) Done() (bool, error) {
	return p.gdo0.Read() == gpio.High, nil
}

// DoneEdge reports an edge queued by the GPIO driver since the last call.
func (p *Port) DoneEdge() (bool, error) {
	return p.gdo0.WaitForEdge(0), nil
}

func (p *Port) Close() error {
	return errors.Join(p.gdo0.Halt(), p.port.Close())
}
