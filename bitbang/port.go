// Package bitbang implements cc1101.Port by toggling GPIO lines: SPI mode 0,
// MSB first, with chip select driven by hand.
package bitbang

import (
	"errors"
	"time"
)

// Output is a GPIO line driven by the host.
type Output interface {
	Set(high bool) error
}

// Input is a GPIO line sampled by the host.
type Input interface {
	Get() (bool, error)
}

// EdgeInput is an input that latches the edge it was configured for.
type EdgeInput interface {
	Input
	// Edge reports whether the edge has been seen since the previous call
	// and clears the latch.
	Edge() (bool, error)
}

// Port is a bit-banged SPI connection to one CC1101.
type Port struct {
	SCK  Output
	MOSI Output
	// CS is the CSn line. It is active low.
	CS   Output
	MISO Input
	// GDO0 is the packet-done line.
	GDO0 EdgeInput
	// HalfPeriod is held after each clock transition. Zero runs as fast as
	// the lines can be toggled.
	HalfPeriod time.Duration
}

func (p *Port) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return errors.New("tx and rx buffer lengths must match")
	}
	for i, b := range w {
		v, err := p.transferByte(b)
		if err != nil {
			return err
		}
		r[i] = v
	}
	return nil
}

func (p *Port) transferByte(tx byte) (byte, error) {
	var rx byte
	for bit := 7; bit >= 0; bit-- {
		if err := p.MOSI.Set(tx&(1<<bit) != 0); err != nil {
			return 0, err
		}
		delay(p.HalfPeriod)
		// Mode 0: the chip samples MOSI on the rising edge and shifts MISO
		// out on the falling edge.
		if err := p.SCK.Set(true); err != nil {
			return 0, err
		}
		high, err := p.MISO.Get()
		if err != nil {
			return 0, err
		}
		if high {
			rx |= 1 << bit
		}
		delay(p.HalfPeriod)
		if err := p.SCK.Set(false); err != nil {
			return 0, err
		}
	}
	return rx, nil
}

func (p *Port) Select(active bool) error {
	if active {
		if err := p.SCK.Set(false); err != nil {
			return err
		}
	}
	return p.CS.Set(!active)
}

// Ready reports whether the chip is holding MISO low.
func (p *Port) Ready() (bool, error) {
	high, err := p.MISO.Get()
	return !high, err
}

func (p *Port) Done() (bool, error) {
	return p.GDO0.Get()
}

func (p *Port) DoneEdge() (bool, error) {
	return p.GDO0.Edge()
}

// delay busy waits; time.Sleep does not resolve microseconds.
func delay(d time.Duration) {
	if d <= 0 {
		return
	}
	for start := time.Now(); time.Since(start) < d; {
	}
}
