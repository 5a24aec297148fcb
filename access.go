package cc1101

import (
	"context"
	"errors"
	"fmt"
)

// selected runs f with chip select asserted and the chip ready. Chip select
// is released on every return path.
func (d *Dev) selected(ctx context.Context, f func() error) (err error) {
	d.bus.Lock()
	defer d.bus.Unlock()

	if err := d.port.Select(true); err != nil {
		d.port.Select(false)
		return fmt.Errorf("failed to assert chip select: %w", err)
	}
	defer func() {
		if rerr := d.port.Select(false); rerr != nil && err == nil {
			err = fmt.Errorf("failed to release chip select: %w", rerr)
		}
	}()
	if err := d.awaitReady(ctx); err != nil {
		return err
	}
	return f()
}

func (d *Dev) awaitReady(ctx context.Context) error {
	err := d.opts.ReadyWait.Wait(ctx, d.port.Ready)
	if errors.Is(err, ErrWaitExpired) {
		d.metrics.timeouts.WithLabelValues("ready").Inc()
		return ErrChipNotResponding
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to read ready line: %w", err)
	}
	return err
}

// transfer runs one transaction clocking out w and returns the bytes clocked
// in. The first returned byte is the chip status.
func (d *Dev) transfer(ctx context.Context, w []byte) ([]byte, error) {
	r := make([]byte, len(w))
	err := d.selected(ctx, func() error {
		if err := d.port.Tx(w, r); err != nil {
			return fmt.Errorf("SPI transfer failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.setStatus(Status(r[0]))
	return r, nil
}

// Strobe sends a command strobe and returns the chip status from before the
// command took effect.
func (d *Dev) Strobe(ctx context.Context, cmd Command) (Status, error) {
	r, err := d.transfer(ctx, []byte{byte(cmd)})
	if err != nil {
		return 0, fmt.Errorf("failed to strobe %v: %w", cmd, err)
	}
	return Status(r[0]), nil
}

func (d *Dev) WriteSingleByte(ctx context.Context, address Register, in byte) error {
	_, err := d.transfer(ctx, []byte{byte(address) | WRITE_SINGLE_BYTE, in})
	if err != nil {
		return fmt.Errorf("failed to write %v: %w", address, err)
	}
	return nil
}

func (d *Dev) WriteBurst(ctx context.Context, address Register, data []byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, byte(address)|WRITE_BURST)
	buf = append(buf, data...)
	_, err := d.transfer(ctx, buf)
	if err != nil {
		return fmt.Errorf("failed to burst write %d bytes to %v: %w", len(data), address, err)
	}
	return nil
}

func (d *Dev) ReadSingleByte(ctx context.Context, address Register) (byte, error) {
	r, err := d.transfer(ctx, []byte{byte(address) | READ_SINGLE_BYTE, 0x00})
	if err != nil {
		return 0x00, fmt.Errorf("failed to read %v: %w", address, err)
	}
	return r[1], nil
}

func (d *Dev) ReadBurst(ctx context.Context, address Register, num int) ([]byte, error) {
	if num < 0 {
		return nil, fmt.Errorf("cannot burst read %d bytes from %v", num, address)
	}
	buf := make([]byte, num+1)
	buf[0] = byte(address) | READ_BURST
	r, err := d.transfer(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to burst read %d bytes from %v: %w", num, address, err)
	}
	return r[1:], nil
}

// ReadStatus reads one status register. The wire sequence is a one byte
// burst read; without the burst bit the address would be taken as a strobe.
// Status registers such as RXBYTES change while they are read, so consecutive
// reads may disagree.
func (d *Dev) ReadStatus(ctx context.Context, address Register) (byte, error) {
	r, err := d.transfer(ctx, []byte{byte(address) | READ_BURST, 0x00})
	if err != nil {
		return 0x00, fmt.Errorf("failed to read status %v: %w", address, err)
	}
	return r[1], nil
}
