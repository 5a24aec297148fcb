// Package embdhost connects a CC1101 through sysfs GPIO using embd. SPI is
// bit-banged, so any five free pins will do.
package embdhost

import (
	"fmt"
	"sync/atomic"

	"github.com/hatstand/cc1101/bitbang"
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/rpi"
)

// Pins are GPIO numbers (BCM numbering on a Raspberry Pi).
type Pins struct {
	SCK, MOSI, MISO, CS, GDO0 int
}

type output struct {
	pin embd.DigitalPin
}

func (o output) Set(high bool) error {
	if high {
		return o.pin.Write(embd.High)
	}
	return o.pin.Write(embd.Low)
}

type input struct {
	pin  embd.DigitalPin
	edge atomic.Bool
}

func (i *input) Get() (bool, error) {
	v, err := i.pin.Read()
	return v == embd.High, err
}

func (i *input) Edge() (bool, error) {
	return i.edge.Swap(false), nil
}

// Port is a bit-banged port over embd pins. Close releases the pins.
type Port struct {
	bitbang.Port
	pins []embd.DigitalPin
}

// Open exports the pins and watches GDO0 for the falling edge at the end of
// a packet.
func Open(pins Pins) (*Port, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, fmt.Errorf("failed to initialise GPIO: %w", err)
	}
	p := &Port{}
	open := func(n int, dir embd.Direction) (embd.DigitalPin, error) {
		pin, err := embd.NewDigitalPin(n)
		if err != nil {
			return nil, fmt.Errorf("failed to open GPIO %d: %w", n, err)
		}
		p.pins = append(p.pins, pin)
		if err := pin.SetDirection(dir); err != nil {
			return nil, fmt.Errorf("failed to set direction of GPIO %d: %w", n, err)
		}
		return pin, nil
	}

	var err error
	outputs := []struct {
		n   int
		out *bitbang.Output
	}{
		{pins.SCK, &p.SCK},
		{pins.MOSI, &p.MOSI},
		{pins.CS, &p.CS},
	}
	for _, o := range outputs {
		var pin embd.DigitalPin
		if pin, err = open(o.n, embd.Out); err != nil {
			p.Close()
			return nil, err
		}
		*o.out = output{pin}
	}
	if err := p.CS.Set(true); err != nil {
		p.Close()
		return nil, err
	}

	miso, err := open(pins.MISO, embd.In)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.MISO = &input{pin: miso}

	gdo0pin, err := open(pins.GDO0, embd.In)
	if err != nil {
		p.Close()
		return nil, err
	}
	gdo0 := &input{pin: gdo0pin}
	err = gdo0pin.Watch(embd.EdgeFalling, func(embd.DigitalPin) {
		gdo0.edge.Store(true)
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to watch GPIO %d: %w", pins.GDO0, err)
	}
	p.GDO0 = gdo0
	return p, nil
}

func (p *Port) Close() error {
	var first error
	for _, pin := range p.pins {
		if err := pin.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.pins = nil
	if err := embd.CloseGPIO(); err != nil && first == nil {
		first = err
	}
	return first
}
