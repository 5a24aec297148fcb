package cc1101

//go:generate mockgen -destination=mocks/mock_port.go -package=mocks github.com/hatstand/cc1101 Port

// Port is the physical connection to one CC1101: the SPI byte exchange plus
// the chip select, ready and packet-done lines.
type Port interface {
	// Tx clocks w out on MOSI and fills r with the bytes clocked in on MISO.
	// len(r) must equal len(w).
	Tx(w, r []byte) error
	// Select drives CSn low when active is true and high otherwise.
	Select(active bool) error
	// Ready reports whether the chip is holding MISO low.
	Ready() (bool, error)
	// Done reports the current level of the packet-done line (GDO0).
	Done() (bool, error)
	// DoneEdge reports whether the completion edge has been seen on the
	// packet-done line since the previous call and clears the latch.
	// Which edge counts is a property of the port and of IOCFG0.
	DoneEdge() (bool, error)
}
