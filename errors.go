package cc1101

import "errors"

var (
	// ErrChipNotResponding is returned when MISO is not pulled low in time
	// after chip select is asserted.
	ErrChipNotResponding = errors.New("chip not responding")
	// ErrDoneSignalTimeout is returned when the packet-done edge does not
	// arrive in time after a transmission is started.
	ErrDoneSignalTimeout = errors.New("timed out waiting for packet done signal")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrFifoOverflow      = errors.New("RX FIFO overflow")
	ErrFifoUnderflow     = errors.New("TX FIFO underflow")
	// ErrNoPacket is returned by Receive when the RX FIFO is empty.
	ErrNoPacket = errors.New("no packet available")
	// ErrBadLength is returned when the length byte at the head of the RX
	// FIFO cannot belong to a valid packet.
	ErrBadLength = errors.New("invalid packet length")
)

// recoverable reports whether err leaves the chip usable after the FIFOs are
// flushed.
func recoverable(err error) bool {
	for _, e := range []error{
		ErrChipNotResponding,
		ErrDoneSignalTimeout,
		ErrFifoOverflow,
		ErrFifoUnderflow,
		ErrNoPacket,
		ErrBadLength,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
