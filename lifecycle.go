package cc1101

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Reset pulses chip select and issues SRES while holding it, the manual reset
// sequence from the datasheet (section 19.1.2). It must complete before any
// other access.
func (d *Dev) Reset(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.log.Info("Resetting chip")
	if err := d.reset(ctx); err != nil {
		return fmt.Errorf("failed to reset chip: %w", err)
	}
	return nil
}

func (d *Dev) reset(ctx context.Context) (err error) {
	d.bus.Lock()
	defer d.bus.Unlock()

	defer func() {
		if rerr := d.port.Select(false); rerr != nil && err == nil {
			err = fmt.Errorf("failed to release chip select: %w", rerr)
		}
	}()
	for i, active := range []bool{true, false, true} {
		if i > 0 {
			if err := sleep(ctx, d.opts.ResetPulse); err != nil {
				return err
			}
		}
		if err := d.port.Select(active); err != nil {
			return fmt.Errorf("failed to pulse chip select: %w", err)
		}
	}
	if err := d.awaitReady(ctx); err != nil {
		return err
	}
	r := make([]byte, 1)
	if err := d.port.Tx([]byte{byte(SRES)}, r); err != nil {
		return fmt.Errorf("SPI transfer failed: %w", err)
	}
	d.setStatus(Status(r[0]))
	return d.awaitReady(ctx)
}

// Configure writes settings in the order given. Some registers depend on
// others being written first, so the order is the caller's to choose.
func (d *Dev) Configure(ctx context.Context, settings []Setting) error {
	for _, s := range settings {
		if !s.Register.IsConfig() {
			return fmt.Errorf("%v is not a configuration register", s.Register)
		}
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.configure(ctx, settings)
}

func (d *Dev) configure(ctx context.Context, settings []Setting) error {
	for _, s := range settings {
		if err := d.WriteSingleByte(ctx, s.Register, s.Value); err != nil {
			return fmt.Errorf("failed to configure register %v: %w", s.Register, err)
		}
	}
	d.log.Debugf("Configured %d registers", len(settings))
	return nil
}

// LoadPowerTable writes all eight PATABLE entries.
func (d *Dev) LoadPowerTable(ctx context.Context, levels [8]byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.WriteBurst(ctx, PATABLE, levels[:])
}

// CurrentState reads the chip state with a SNOP strobe.
func (d *Dev) CurrentState(ctx context.Context) (State, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	status, err := d.Strobe(ctx, SNOP)
	if err != nil {
		return 0, err
	}
	return status.State(), nil
}

// MarcState reads the detailed main radio control state (MARCSTATE).
func (d *Dev) MarcState(ctx context.Context) (byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	v, err := d.ReadStatus(ctx, MARCSTATE)
	if err != nil {
		return 0, err
	}
	return v & 0x1f, nil
}

// Init resets the chip, checks its identity and applies a register table and
// power table.
func (d *Dev) Init(ctx context.Context, settings []Setting, paTable [8]byte) error {
	if err := d.Reset(ctx); err != nil {
		return err
	}
	if err := d.SelfTest(ctx); err != nil {
		// Clones report other versions and still work.
		d.log.Warnf("Self test: %v", err)
	}
	if err := d.Configure(ctx, settings); err != nil {
		return err
	}
	if err := d.LoadPowerTable(ctx, paTable); err != nil {
		return fmt.Errorf("failed to load power table: %w", err)
	}
	d.log.Infof("Configured %d registers and power table", len(settings))
	return nil
}

// SelfTest checks the chip identifies as a CC1101.
func (d *Dev) SelfTest(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	version, err := d.ReadStatus(ctx, VERSION)
	if err != nil {
		return err
	}
	d.log.Infof("Version: 0x%x", version)
	partnum, err := d.ReadStatus(ctx, PARTNUM)
	if err != nil {
		return err
	}
	d.log.Infof("Partnum: 0x%x", partnum)

	if version != 0x14 || partnum != 0x00 {
		return fmt.Errorf("self test failed: got version 0x%x partnum 0x%x", version, partnum)
	}
	return nil
}

func (d *Dev) SetSyncWord(ctx context.Context, word uint16) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	err := d.WriteSingleByte(ctx, SYNC1, byte(word>>8))
	if err != nil {
		return err
	}
	return d.WriteSingleByte(ctx, SYNC0, byte(word&0xff))
}

// SetState strobes a state change and waits for it to settle. It waits for
// any packet operation in progress, so a strobe cannot land between a FIFO
// write and the STX that sends it.
func (d *Dev) SetState(ctx context.Context, state Command) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.setState(ctx, state)
}

func (d *Dev) setState(ctx context.Context, state Command) error {
	d.log.Debugf("Setting chip state: %v", state)
	if _, err := d.Strobe(ctx, state); err != nil {
		return err
	}
	return sleep(ctx, d.opts.StateSettle)
}

func (d *Dev) SetRx(ctx context.Context) error {
	return d.SetState(ctx, SRX)
}

func (d *Dev) SetTx(ctx context.Context) error {
	return d.SetState(ctx, STX)
}

func (d *Dev) SetIdle(ctx context.Context) error {
	return d.SetState(ctx, SIDLE)
}

// FlushRx flushes the RX FIFO and leaves the chip in IDLE.
func (d *Dev) FlushRx(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.flushRx(ctx)
}

// SFRX is only valid in IDLE or RXFIFO_OVERFLOW. SIDLE gets there from
// everywhere except TXFIFO_UNDERFLOW, which needs SFTX.
func (d *Dev) flushRx(ctx context.Context) error {
	status, err := d.Strobe(ctx, SIDLE)
	if err != nil {
		return err
	}
	if status.State() == StateTXFIFOUnderflow {
		if _, err := d.Strobe(ctx, SFTX); err != nil {
			return err
		}
	}
	_, err = d.Strobe(ctx, SFRX)
	return err
}

// FlushTx flushes the TX FIFO and returns the status from before the flush.
func (d *Dev) FlushTx(ctx context.Context) (Status, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.flushTx(ctx)
}

func (d *Dev) flushTx(ctx context.Context) (Status, error) {
	return d.Strobe(ctx, SFTX)
}

// ReadConfig reads back every configuration register in one burst.
func (d *Dev) ReadConfig(ctx context.Context) (map[Register]byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	values, err := d.ReadBurst(ctx, IOCFG2, int(TEST0-IOCFG2)+1)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	ret := make(map[Register]byte, len(values))
	for i, v := range values {
		ret[IOCFG2+Register(i)] = v
	}
	return ret, nil
}

// freqWord is the 24 bit FREQ2..FREQ0 value. One step is fXOSC/2^16.
type freqWord uint32

func toFreqWord(xosc, f physic.Frequency) freqWord {
	return freqWord(int64(f)/(int64(xosc)>>16)) & 0xffffff
}

func parseFreqWord(b []byte) freqWord {
	return freqWord(b[0])<<16 | freqWord(b[1])<<8 | freqWord(b[2])
}

func (w freqWord) bytes() []byte {
	return []byte{byte(w >> 16), byte(w >> 8), byte(w)}
}

func (w freqWord) frequency(xosc physic.Frequency) physic.Frequency {
	return physic.Frequency((int64(xosc) >> 16) * int64(w))
}

// SetFrequency programs FREQ2..FREQ0 for the carrier frequency.
func (d *Dev) SetFrequency(ctx context.Context, freq physic.Frequency) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.WriteBurst(ctx, FREQ2, toFreqWord(d.opts.Oscillator, freq).bytes())
}

// Frequency reads back the programmed carrier frequency.
func (d *Dev) Frequency(ctx context.Context) (physic.Frequency, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	b, err := d.ReadBurst(ctx, FREQ2, 3)
	if err != nil {
		return 0, fmt.Errorf("failed to read frequency configuration: %w", err)
	}
	return parseFreqWord(b).frequency(d.opts.Oscillator), nil
}

// deviatn is the DEVIATN register: mantissa in bits 2:0, exponent in bits
// 6:4. The deviation is fXOSC/2^17 * (8+m) * 2^e.
type deviatn byte

func (v deviatn) frequency(xosc physic.Frequency) physic.Frequency {
	m := 8 + int64(v&0x07)
	e := uint(v>>4) & 0x07
	return physic.Frequency((int64(xosc) >> 17) * m << e)
}

// nearestDeviatn picks the setting closest to target. There are only 64.
func nearestDeviatn(xosc, target physic.Frequency) deviatn {
	best, bestDist := deviatn(0), physic.Frequency(-1)
	for e := 0; e < 8; e++ {
		for m := 0; m < 8; m++ {
			v := deviatn(e<<4 | m)
			dist := v.frequency(xosc) - target
			if dist < 0 {
				dist = -dist
			}
			if bestDist < 0 || dist < bestDist {
				best, bestDist = v, dist
			}
		}
	}
	return best
}

// SetDeviation sets the frequency deviation (DEVIATN) for FSK schemes.
func (d *Dev) SetDeviation(ctx context.Context, freq physic.Frequency) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.WriteSingleByte(ctx, DEVIATN, byte(nearestDeviatn(d.opts.Oscillator, freq)))
}
