// Package cc1101 drives a TI CC1101 sub-GHz transceiver over a Port: register
// access, chip lifecycle and packet send/receive.
//
// Datasheet:
// http://www.ti.com/lit/ds/symlink/cc1101.pdf
package cc1101

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// Options configures a Dev.
type Options struct {
	// ReadyWait bounds the wait for MISO to go low at the start of every
	// transaction.
	ReadyWait Waiter
	// DoneWait bounds the waits on the packet-done line.
	DoneWait Waiter
	// ResetPulse is the gap between the chip select transitions of the reset
	// sequence.
	ResetPulse time.Duration
	// StateSettle is slept after SetIdle, SetRx and SetTx.
	StateSettle time.Duration
	// Oscillator is the frequency of the attached crystal (usually 26MHz or 27MHz).
	Oscillator physic.Frequency
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Registerer receives the driver metrics when set.
	Registerer prometheus.Registerer
}

// DefaultOptions returns options suitable for real hardware.
func DefaultOptions() Options {
	return Options{
		ReadyWait: Poll{Timeout: 10 * time.Millisecond},
		DoneWait:  Poll{Timeout: 500 * time.Millisecond, Interval: 100 * time.Microsecond},
		// Datasheet asks for at least 40us.
		ResetPulse: time.Millisecond,
		// Worst case state change is ~1ms for IDLE -> RX with calibration.
		// See Table 34 in datasheet.
		StateSettle: time.Millisecond,
		Oscillator:  26 * physic.MegaHertz,
	}
}

// Dev is a handle to one CC1101. Packet and lifecycle operations are safe to
// call from several goroutines. The register access methods (Strobe,
// ReadBurst and friends) only hold the bus for their own transaction.
type Dev struct {
	port    Port
	opts    Options
	log     *zap.SugaredLogger
	metrics *metrics

	// Held for one chip select assertion.
	bus sync.Mutex
	// Held for one packet or lifecycle operation. Always taken before bus.
	lock sync.Mutex

	statusLock sync.Mutex
	status     Status
}

// New returns a Dev talking through port. It does not touch the hardware;
// call Init or Reset and Configure before use.
func New(port Port, opts Options) *Dev {
	defaults := DefaultOptions()
	if opts.ReadyWait == nil {
		opts.ReadyWait = defaults.ReadyWait
	}
	if opts.DoneWait == nil {
		opts.DoneWait = defaults.DoneWait
	}
	if opts.Oscillator == 0 {
		opts.Oscillator = defaults.Oscillator
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dev{
		port:    port,
		opts:    opts,
		log:     opts.Logger.Sugar(),
		metrics: newMetrics(opts.Registerer),
	}
}

// LastStatus returns the status byte returned by the most recent transaction.
func (d *Dev) LastStatus() Status {
	d.statusLock.Lock()
	defer d.statusLock.Unlock()
	return d.status
}

func (d *Dev) setStatus(s Status) {
	d.statusLock.Lock()
	d.status = s
	d.statusLock.Unlock()
}

// Close resets the chip and closes the port if it is an io.Closer.
func (d *Dev) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := d.Strobe(ctx, SRES); err != nil {
		d.log.Warnf("Failed to reset chip on close: %v", err)
	}
	if c, ok := d.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
