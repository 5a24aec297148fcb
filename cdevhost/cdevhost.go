// Package cdevhost connects a CC1101 through the GPIO character device
// (/dev/gpiochipN) with bit-banged SPI.
package cdevhost

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hatstand/cc1101/bitbang"
	"github.com/warthog618/go-gpiocdev"
)

// Pins are line offsets on the chip.
type Pins struct {
	SCK, MOSI, MISO, CS, GDO0 int
}

type line struct {
	*gpiocdev.Line
	edge atomic.Bool
}

func (l *line) Set(high bool) error {
	if high {
		return l.SetValue(1)
	}
	return l.SetValue(0)
}

func (l *line) Get() (bool, error) {
	v, err := l.Value()
	return v == 1, err
}

func (l *line) Edge() (bool, error) {
	return l.edge.Swap(false), nil
}

// Port is a bit-banged port over character device lines.
type Port struct {
	bitbang.Port
	chip  *gpiocdev.Chip
	lines []*line
}

// Open requests the lines on chipPath (e.g. "gpiochip0"). GDO0 reports the
// falling edge at the end of a packet.
func Open(chipPath string, pins Pins) (*Port, error) {
	chip, err := gpiocdev.NewChip(chipPath, gpiocdev.WithConsumer("cc1101"))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}
	p := &Port{chip: chip}
	request := func(name string, offset int, opts ...gpiocdev.LineReqOption) (*line, error) {
		l := &line{}
		var err error
		l.Line, err = chip.RequestLine(offset, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to request %s line %d: %w", name, offset, err)
		}
		p.lines = append(p.lines, l)
		return l, nil
	}

	sck, err := request("SCK", pins.SCK, gpiocdev.AsOutput(0))
	if err != nil {
		p.Close()
		return nil, err
	}
	mosi, err := request("MOSI", pins.MOSI, gpiocdev.AsOutput(0))
	if err != nil {
		p.Close()
		return nil, err
	}
	// CSn idles high.
	cs, err := request("CS", pins.CS, gpiocdev.AsOutput(1))
	if err != nil {
		p.Close()
		return nil, err
	}
	miso, err := request("MISO", pins.MISO, gpiocdev.AsInput)
	if err != nil {
		p.Close()
		return nil, err
	}
	gdo0 := &line{}
	gdo0.Line, err = chip.RequestLine(pins.GDO0,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			gdo0.edge.Store(true)
		}))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to request GDO0 line %d: %w", pins.GDO0, err)
	}
	p.lines = append(p.lines, gdo0)

	p.Port = bitbang.Port{SCK: sck, MOSI: mosi, CS: cs, MISO: miso, GDO0: gdo0}
	return p, nil
}

func (p *Port) Close() error {
	var errs []error
	for _, l := range p.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.lines = nil
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		p.chip = nil
	}
	return errors.Join(errs...)
}
