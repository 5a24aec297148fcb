// Package sim is a simulated CC1101 that implements cc1101.Port.
//
// It parses the SPI byte stream the way the chip does: a header byte per
// access, single or burst data bytes, and strobes in the 0x30-0x3d range. It
// keeps a configuration register file, the PA table, both FIFOs and the main
// state machine. Transmission is instant: STX drains the TX FIFO, hands the
// packet to the linked peer and raises the done edge.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hatstand/cc1101"
)

const fifoSize = 64

type registerFile [int(cc1101.TEST0) + 1]byte

var (
	ErrNotSelected = errors.New("chip select not asserted")
	// ErrNotReceiving is returned by InjectPacket when the chip is not in RX.
	ErrNotReceiving = errors.New("chip is not in RX")
)

// Chip is a simulated CC1101. It is safe for concurrent use.
type Chip struct {
	mu sync.Mutex

	regs    registerFile
	pa      [8]byte
	paIndex int
	tx      []byte
	rx      []byte
	state   cc1101.State

	selected  bool
	stuck     bool
	header    byte
	hasHeader bool
	addr      byte
	cur       []byte
	log       [][]byte

	doneReads int
	doneEdge  bool

	failNextTx bool
	peer       *Chip
	sent       [][]byte
}

func New() *Chip {
	return &Chip{}
}

// Link makes every packet c transmits arrive at peer.
func (c *Chip) Link(peer *Chip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peer = peer
}

// SetStuck stops the chip from ever pulling MISO low.
func (c *Chip) SetStuck(stuck bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck = stuck
}

// FailNextTransmit makes the next STX end in TXFIFO_UNDERFLOW.
func (c *Chip) FailNextTransmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNextTx = true
}

func (c *Chip) Select(active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active == c.selected {
		return nil
	}
	c.selected = active
	c.hasHeader = false
	if active {
		c.cur = nil
		return nil
	}
	// The PA table index returns to the first entry when CSn goes high.
	c.paIndex = 0
	if len(c.cur) > 0 {
		c.log = append(c.log, c.cur)
	}
	c.cur = nil
	return nil
}

func (c *Chip) Ready() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected && !c.stuck, nil
}

// Done reports the GDO0 level. It is high for one read after a packet has
// been received.
func (c *Chip) Done() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneReads > 0 {
		c.doneReads--
		return true, nil
	}
	return false, nil
}

func (c *Chip) DoneEdge() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	edge := c.doneEdge
	c.doneEdge = false
	return edge, nil
}

func (c *Chip) Tx(w, r []byte) error {
	if len(r) != len(w) {
		return fmt.Errorf("buffer length mismatch: %d != %d", len(w), len(r))
	}
	c.mu.Lock()
	if !c.selected || c.stuck {
		c.mu.Unlock()
		return ErrNotSelected
	}
	c.cur = append(c.cur, w...)
	var deliveries [][]byte
	for i, b := range w {
		if pkt, ok := c.clock(b, &r[i]); ok {
			deliveries = append(deliveries, pkt)
		}
	}
	peer := c.peer
	c.mu.Unlock()

	for _, pkt := range deliveries {
		if peer != nil {
			peer.InjectPacket(pkt, 0x40, 0x20, true)
		}
	}
	return nil
}

// clock handles one byte on MOSI and sets the byte shifted out on MISO. It
// returns a packet when the byte was an STX strobe that transmitted one.
func (c *Chip) clock(b byte, out *byte) ([]byte, bool) {
	if !c.hasHeader {
		*out = c.statusByte(b&cc1101.READ_SINGLE_BYTE != 0)
		addr := b &^ 0xc0
		burst := b&cc1101.WRITE_BURST != 0
		if addr >= byte(cc1101.SRES) && addr <= byte(cc1101.SNOP) && !burst {
			return c.strobe(cc1101.Command(addr))
		}
		c.header = b
		c.addr = addr
		c.hasHeader = true
		return nil, false
	}

	read := c.header&cc1101.READ_SINGLE_BYTE != 0
	burst := c.header&cc1101.WRITE_BURST != 0
	reg := cc1101.Register(c.addr)
	switch {
	case reg == cc1101.TXFIFO && !read:
		*out = c.statusByte(false)
		if len(c.tx) < fifoSize {
			c.tx = append(c.tx, b)
		}
	case reg == cc1101.RXFIFO && read:
		*out = 0
		if len(c.rx) > 0 {
			*out = c.rx[0]
			c.rx = c.rx[1:]
		}
	case reg == cc1101.PATABLE:
		if read {
			*out = c.pa[c.paIndex]
		} else {
			*out = c.statusByte(false)
			c.pa[c.paIndex] = b
		}
		c.paIndex = (c.paIndex + 1) % len(c.pa)
	case reg.IsStatus():
		*out = c.statusRegister(reg)
	case reg.IsConfig():
		if read {
			*out = c.regs[reg]
		} else {
			*out = c.statusByte(false)
			c.regs[reg] = b
		}
		c.addr++
	default:
		*out = 0
		c.addr++
	}
	if !burst {
		c.hasHeader = false
	}
	return nil, false
}

func (c *Chip) statusByte(read bool) byte {
	n := fifoSize - len(c.tx)
	if read {
		n = len(c.rx)
	}
	if n > cc1101.FIFO_BYTES_AVAILABLE {
		n = cc1101.FIFO_BYTES_AVAILABLE
	}
	return byte(c.state)<<4 | byte(n)
}

func (c *Chip) statusRegister(reg cc1101.Register) byte {
	switch reg {
	case cc1101.PARTNUM:
		return 0x00
	case cc1101.VERSION:
		return 0x14
	case cc1101.MARCSTATE:
		return marcStates[c.state]
	case cc1101.TXBYTES:
		v := byte(len(c.tx))
		if c.state == cc1101.StateTXFIFOUnderflow {
			v |= 0x80
		}
		return v
	case cc1101.RXBYTES:
		v := byte(len(c.rx))
		if c.state == cc1101.StateRXFIFOOverflow {
			v |= 0x80
		}
		return v
	}
	return 0
}

// MARCSTATE value for each status byte state.
var marcStates = map[cc1101.State]byte{
	cc1101.StateIdle:            0x01,
	cc1101.StateRX:              0x0d,
	cc1101.StateTX:              0x13,
	cc1101.StateFSTXON:          0x12,
	cc1101.StateCalibrate:       0x08,
	cc1101.StateSettling:        0x03,
	cc1101.StateRXFIFOOverflow:  0x11,
	cc1101.StateTXFIFOUnderflow: 0x16,
}

func (c *Chip) fifoError() bool {
	return c.state == cc1101.StateRXFIFOOverflow || c.state == cc1101.StateTXFIFOUnderflow
}

func (c *Chip) strobe(cmd cc1101.Command) ([]byte, bool) {
	switch cmd {
	case cc1101.SRES:
		c.regs = registerFile{}
		c.pa = [8]byte{}
		c.tx = nil
		c.rx = nil
		c.state = cc1101.StateIdle
		c.doneReads = 0
		c.doneEdge = false
	case cc1101.SIDLE:
		if !c.fifoError() {
			c.state = cc1101.StateIdle
		}
	case cc1101.SRX:
		if !c.fifoError() {
			c.state = cc1101.StateRX
		}
	case cc1101.SFSTXON:
		if !c.fifoError() {
			c.state = cc1101.StateFSTXON
		}
	case cc1101.STX:
		if !c.fifoError() {
			return c.transmit()
		}
	case cc1101.SFRX:
		if c.state == cc1101.StateIdle || c.state == cc1101.StateRXFIFOOverflow {
			c.rx = nil
			c.state = cc1101.StateIdle
		}
	case cc1101.SFTX:
		if c.state == cc1101.StateIdle || c.state == cc1101.StateTXFIFOUnderflow {
			c.tx = nil
			c.state = cc1101.StateIdle
		}
	}
	return nil, false
}

func (c *Chip) transmit() ([]byte, bool) {
	c.doneEdge = true
	if c.failNextTx || len(c.tx) == 0 || len(c.tx) < int(c.tx[0])+1 {
		c.failNextTx = false
		c.tx = nil
		c.state = cc1101.StateTXFIFOUnderflow
		return nil, false
	}
	n := int(c.tx[0])
	pkt := append([]byte(nil), c.tx[1:1+n]...)
	c.tx = c.tx[1+n:]
	c.sent = append(c.sent, pkt)
	c.state = cc1101.StateIdle
	return pkt, true
}

// InjectPacket receives payload over the air as if it had just been sent by
// another radio. The chip must be in RX.
func (c *Chip) InjectPacket(payload []byte, rssi, lqi byte, crcOK bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != cc1101.StateRX {
		return ErrNotReceiving
	}
	status := lqi &^ cc1101.CRC_OK
	if crcOK {
		status |= cc1101.CRC_OK
	}
	c.rx = append(c.rx, byte(len(payload)))
	c.rx = append(c.rx, payload...)
	c.rx = append(c.rx, rssi, status)
	c.state = cc1101.StateIdle
	if len(c.rx) > fifoSize {
		c.rx = c.rx[:fifoSize]
		c.state = cc1101.StateRXFIFOOverflow
	}
	c.doneReads = 1
	c.doneEdge = true
	return nil
}

// State is the current main state machine state.
func (c *Chip) State() cc1101.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Register returns the value of a configuration register.
func (c *Chip) Register(r cc1101.Register) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[r]
}

func (c *Chip) PowerTable() [8]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pa
}

// Sent returns the payloads transmitted so far.
func (c *Chip) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// Transactions returns the bytes clocked in on MOSI during each chip select
// assertion that carried data.
func (c *Chip) Transactions() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.log...)
}

func (c *Chip) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
}
