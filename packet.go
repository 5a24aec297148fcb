package cc1101

import (
	"context"
	"errors"
	"fmt"
)

// rxBytesReads bounds the repeated RXBYTES reads. The register can change
// while it is being read (CC1101 errata), so it is read until two consecutive
// values agree.
const rxBytesReads = 4

// Packet is one frame read out of the RX FIFO.
type Packet struct {
	Data []byte
	// RSSI is the raw signal strength byte appended by the chip.
	RSSI byte
	// LQI is the link quality indicator with the CRC bit removed.
	LQI   byte
	CRCOK bool
}

// RSSIdBm converts the raw RSSI byte to dBm.
func (p *Packet) RSSIdBm() int {
	return convertRSSI(int(p.RSSI))
}

// Send transmits one variable length packet. It blocks until the chip
// reports the end of the packet on the done line.
func (d *Dev) Send(ctx context.Context, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes, at most %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	d.lock.Lock()
	defer d.lock.Unlock()

	d.log.Debugf("Sending packet: %x", payload)
	err := d.send(ctx, payload)
	if errors.Is(err, ErrFifoUnderflow) {
		d.metrics.fifoErrors.WithLabelValues("tx").Inc()
		d.log.Warn("TX FIFO underflow, retrying")
		err = d.send(ctx, payload)
	}
	if err != nil {
		return err
	}
	d.metrics.sent.Inc()
	return nil
}

func (d *Dev) send(ctx context.Context, payload []byte) error {
	status, err := d.flushTx(ctx)
	if err != nil {
		return err
	}
	// RXFIFO_OVERFLOW ignores SFTX and STX. Only SFRX gets out of it.
	if status.State() == StateRXFIFOOverflow {
		d.metrics.fifoErrors.WithLabelValues("rx").Inc()
		d.log.Warn("RX FIFO overflow before send, flushing")
		if err := d.flushFifos(ctx); err != nil {
			return err
		}
	}
	// Clear any edge left over from a previous packet.
	if _, err := d.port.DoneEdge(); err != nil {
		return fmt.Errorf("failed to read done line: %w", err)
	}

	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, byte(len(payload)))
	buf = append(buf, payload...)
	d.log.Debugf("Writing %d bytes to TX FIFO", len(buf))
	if err := d.WriteBurst(ctx, TXFIFO, buf); err != nil {
		return err
	}

	d.log.Debug("Enabling TX mode")
	if _, err := d.Strobe(ctx, STX); err != nil {
		return err
	}

	d.log.Debug("Waiting for end of packet")
	if err := d.awaitDone(ctx); err != nil {
		return err
	}

	status, err = d.flushTx(ctx)
	if err != nil {
		return err
	}
	if status.State() == StateTXFIFOUnderflow {
		return ErrFifoUnderflow
	}
	return nil
}

func (d *Dev) awaitDone(ctx context.Context) error {
	err := d.opts.DoneWait.Wait(ctx, d.port.DoneEdge)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrWaitExpired) {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("failed to read done line: %w", err)
	}

	d.metrics.timeouts.WithLabelValues("done").Inc()
	d.log.Warn("Timed out waiting for end of packet")
	if err := d.flushFifos(ctx); err != nil {
		d.log.Warnf("Failed to flush FIFOs after timeout: %v", err)
	}
	return ErrDoneSignalTimeout
}

// flushFifos empties both FIFOs and leaves the chip in IDLE from any state.
func (d *Dev) flushFifos(ctx context.Context) error {
	if err := d.flushRx(ctx); err != nil {
		return err
	}
	_, err := d.flushTx(ctx)
	return err
}

// Receive reads one packet out of the RX FIFO. It returns ErrNoPacket if the
// FIFO is empty. The RX FIFO is flushed before Receive returns, so the chip
// is left in IDLE and must be put back into RX by the caller.
func (d *Dev) Receive(ctx context.Context) (*Packet, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	p, err := d.receive(ctx)
	if errors.Is(err, ErrFifoOverflow) {
		d.metrics.fifoErrors.WithLabelValues("rx").Inc()
		d.log.Warn("RX FIFO overflow, retrying")
		p, err = d.receive(ctx)
	}
	if err != nil {
		return nil, err
	}

	d.metrics.received.Inc()
	if !p.CRCOK {
		d.metrics.crcFailures.Inc()
	}
	d.log.Debugf("Status RSSI: %ddBm LQI: %d CRC OK: %t", p.RSSIdBm(), p.LQI, p.CRCOK)
	return p, nil
}

func (d *Dev) receive(ctx context.Context) (p *Packet, err error) {
	rxbytes, err := d.rxBytes(ctx)
	if err != nil {
		return nil, err
	}
	d.log.Debugf("RXBYTES: 0x%x", rxbytes)

	defer func() {
		if ferr := d.flushRx(ctx); ferr != nil && err == nil {
			p = nil
			err = fmt.Errorf("failed to flush RX FIFO: %w", ferr)
		}
	}()

	if rxbytes&OVERFLOW != 0 {
		return nil, ErrFifoOverflow
	}
	if rxbytes&BYTES_IN_RXFIFO == 0 {
		return nil, ErrNoPacket
	}

	length, err := d.ReadSingleByte(ctx, RXFIFO)
	if err != nil {
		return nil, err
	}
	if int(length) > MaxPayload {
		return nil, fmt.Errorf("%w: %d", ErrBadLength, length)
	}
	d.log.Debugf("Receiving %d bytes", length)

	data := []byte{}
	if length > 0 {
		data, err = d.ReadBurst(ctx, RXFIFO, int(length))
		if err != nil {
			return nil, err
		}
	}
	status, err := d.ReadBurst(ctx, RXFIFO, 2)
	if err != nil {
		return nil, err
	}
	return &Packet{
		Data:  data,
		RSSI:  status[RSSI],
		LQI:   status[LQI] &^ CRC_OK,
		CRCOK: status[LQI]&CRC_OK != 0,
	}, nil
}

func (d *Dev) rxBytes(ctx context.Context) (byte, error) {
	prev, err := d.ReadStatus(ctx, RXBYTES)
	if err != nil {
		return 0, err
	}
	for i := 1; i < rxBytesReads; i++ {
		cur, err := d.ReadStatus(ctx, RXBYTES)
		if err != nil {
			return 0, err
		}
		if cur == prev {
			return cur, nil
		}
		prev = cur
	}
	return prev, nil
}

// PollDataReady reports whether a packet has arrived. If the done line is
// high it waits for the end of the packet before returning true.
func (d *Dev) PollDataReady(ctx context.Context) (bool, error) {
	high, err := d.port.Done()
	if err != nil {
		return false, fmt.Errorf("failed to read done line: %w", err)
	}
	if !high {
		return false, nil
	}
	err = d.opts.DoneWait.Wait(ctx, func() (bool, error) {
		v, err := d.port.Done()
		return !v, err
	})
	if errors.Is(err, ErrWaitExpired) {
		d.metrics.timeouts.WithLabelValues("done").Inc()
		return false, ErrDoneSignalTimeout
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		return false, fmt.Errorf("failed to read done line: %w", err)
	}
	return true, nil
}
