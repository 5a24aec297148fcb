package cc1101

import "fmt"

// Status is the chip status byte shifted out on MISO while a header byte is
// clocked in.
type Status byte

const (
	// Bitmask for reading state out of chip status byte.
	STATE = 0x70

	CHIP_RDYn            = 0x80
	FIFO_BYTES_AVAILABLE = 0x0f
)

// State of the main radio control state machine as reported in the status
// byte.
type State byte

const (
	StateIdle State = iota
	StateRX
	StateTX
	StateFSTXON
	StateCalibrate
	StateSettling
	StateRXFIFOOverflow
	StateTXFIFOUnderflow
)

var stateNames = [...]string{
	StateIdle:            "IDLE",
	StateRX:              "RX",
	StateTX:              "TX",
	StateFSTXON:          "FSTXON",
	StateCalibrate:       "CALIBRATE",
	StateSettling:        "SETTLING",
	StateRXFIFOOverflow:  "RXFIFO_OVERFLOW",
	StateTXFIFOUnderflow: "TXFIFO_UNDERFLOW",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", byte(s))
}

// State extracts the state field.
func (s Status) State() State {
	return State((s & STATE) >> 4)
}

// Ready reports whether the crystal is running and the regulator is stable.
func (s Status) Ready() bool {
	return s&CHIP_RDYn == 0
}

// FifoBytes is the number of bytes available in the RX FIFO after a read
// header, or free in the TX FIFO after a write header, saturated at 15.
func (s Status) FifoBytes() int {
	return int(s & FIFO_BYTES_AVAILABLE)
}

func (s Status) String() string {
	return fmt.Sprintf("%#02x (%v, ready %v, fifo %d)", byte(s), s.State(), s.Ready(), s.FifoBytes())
}
