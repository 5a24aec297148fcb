package cc1101

import (
	"fmt"
	"strconv"
	"strings"
)

// Register is the address of a configuration, status, PA table or FIFO
// register.
type Register byte

// Command is a command strobe. Strobes share the 0x30-0x3d address range with
// the status registers and are told apart by the burst bit.
type Command byte

const (
	// Read/write flags.
	WRITE_SINGLE_BYTE = 0x00
	WRITE_BURST       = 0x40
	READ_SINGLE_BYTE  = 0x80
	READ_BURST        = 0xc0

	// Mask of the access flags in a header byte.
	accessMask = 0xc0

	BYTES_IN_RXFIFO = 0x7f
	OVERFLOW        = 0x80

	CRC_OK      = 0x80
	RSSI        = 0
	LQI         = 1
	RSSI_OFFSET = 74

	// FIFO size less the length byte and the two appended status bytes.
	MaxPayload = 64 - 1 - 2
)

// Strobes
const (
	SRES    Command = 0x30 // Reset
	SFSTXON Command = 0x31 // Enable and calibrate frequency synthesizer
	SXOFF   Command = 0x32 // Turn off crystal oscillator
	SCAL    Command = 0x33 // Calibrate frequency synthesizer and turn it off
	SRX     Command = 0x34 // Set receive mode
	STX     Command = 0x35 // Set transmit mode
	SIDLE   Command = 0x36
	SAFC    Command = 0x37 // Frequency synthesizer AFC adjustment
	SWOR    Command = 0x38 // Start wake-on-radio polling
	SPWD    Command = 0x39 // Power down when CSn goes high
	SFRX    Command = 0x3a // Flush RX FIFO buffer
	SFTX    Command = 0x3b // Flush TX FIFO buffer
	SWORRST Command = 0x3c // Reset real time clock
	SNOP    Command = 0x3d
)

// Config Registers
const (
	IOCFG2 Register = 0x00
	IOCFG1 Register = 0x01
	IOCFG0 Register = 0x02

	FIFOTHR Register = 0x03

	SYNC1 Register = 0x04
	SYNC0 Register = 0x05

	PKTLEN   Register = 0x06
	PKTCTRL1 Register = 0x07
	PKTCTRL0 Register = 0x08

	ADDR Register = 0x09

	CHANNR  Register = 0x0a
	FSCTRL1 Register = 0x0b
	FSCTRL0 Register = 0x0c

	FREQ2 Register = 0x0d
	FREQ1 Register = 0x0e
	FREQ0 Register = 0x0f

	MDMCFG4 Register = 0x10
	MDMCFG3 Register = 0x11
	MDMCFG2 Register = 0x12
	MDMCFG1 Register = 0x13
	MDMCFG0 Register = 0x14

	DEVIATN Register = 0x15

	MCSM2 Register = 0x16
	MCSM1 Register = 0x17
	MCSM0 Register = 0x18

	FOCCFG Register = 0x19
	BSCFG  Register = 0x1a

	AGCCTRL2 Register = 0x1b
	AGCCTRL1 Register = 0x1c
	AGCCTRL0 Register = 0x1d

	WOREVT1 Register = 0x1e
	WOREVT0 Register = 0x1f
	WORCTRL Register = 0x20

	FREND1 Register = 0x21
	FREND0 Register = 0x22

	FSCAL3 Register = 0x23
	FSCAL2 Register = 0x24
	FSCAL1 Register = 0x25
	FSCAL0 Register = 0x26

	RCCTRL1 Register = 0x27
	RCCTRL0 Register = 0x28

	FSTEST  Register = 0x29
	PTEST   Register = 0x2a
	AGCTEST Register = 0x2b
	TEST2   Register = 0x2c
	TEST1   Register = 0x2d
	TEST0   Register = 0x2e
)

// Status Registers. Only readable with the burst bit set.
const (
	PARTNUM        Register = 0x30
	VERSION        Register = 0x31
	FREQEST        Register = 0x32
	LQI_STATUS     Register = 0x33
	RSSI_STATUS    Register = 0x34
	MARCSTATE      Register = 0x35
	WORTIME1       Register = 0x36
	WORTIME0       Register = 0x37
	PKTSTATUS      Register = 0x38
	VCO_VC_DAC     Register = 0x39
	TXBYTES        Register = 0x3a
	RXBYTES        Register = 0x3b
	RCCTRL1_STATUS Register = 0x3c
	RCCTRL0_STATUS Register = 0x3d
)

const (
	PATABLE Register = 0x3e
	TXFIFO  Register = 0x3f
	RXFIFO  Register = 0x3f
)

var registerNames = map[Register]string{
	IOCFG2: "IOCFG2", IOCFG1: "IOCFG1", IOCFG0: "IOCFG0", FIFOTHR: "FIFOTHR",
	SYNC1: "SYNC1", SYNC0: "SYNC0", PKTLEN: "PKTLEN", PKTCTRL1: "PKTCTRL1",
	PKTCTRL0: "PKTCTRL0", ADDR: "ADDR", CHANNR: "CHANNR", FSCTRL1: "FSCTRL1",
	FSCTRL0: "FSCTRL0", FREQ2: "FREQ2", FREQ1: "FREQ1", FREQ0: "FREQ0",
	MDMCFG4: "MDMCFG4", MDMCFG3: "MDMCFG3", MDMCFG2: "MDMCFG2", MDMCFG1: "MDMCFG1",
	MDMCFG0: "MDMCFG0", DEVIATN: "DEVIATN", MCSM2: "MCSM2", MCSM1: "MCSM1",
	MCSM0: "MCSM0", FOCCFG: "FOCCFG", BSCFG: "BSCFG", AGCCTRL2: "AGCCTRL2",
	AGCCTRL1: "AGCCTRL1", AGCCTRL0: "AGCCTRL0", WOREVT1: "WOREVT1", WOREVT0: "WOREVT0",
	WORCTRL: "WORCTRL", FREND1: "FREND1", FREND0: "FREND0", FSCAL3: "FSCAL3",
	FSCAL2: "FSCAL2", FSCAL1: "FSCAL1", FSCAL0: "FSCAL0", RCCTRL1: "RCCTRL1",
	RCCTRL0: "RCCTRL0", FSTEST: "FSTEST", PTEST: "PTEST", AGCTEST: "AGCTEST",
	TEST2: "TEST2", TEST1: "TEST1", TEST0: "TEST0",

	PARTNUM: "PARTNUM", VERSION: "VERSION", FREQEST: "FREQEST", LQI_STATUS: "LQI",
	RSSI_STATUS: "RSSI", MARCSTATE: "MARCSTATE", WORTIME1: "WORTIME1", WORTIME0: "WORTIME0",
	PKTSTATUS: "PKTSTATUS", VCO_VC_DAC: "VCO_VC_DAC", TXBYTES: "TXBYTES", RXBYTES: "RXBYTES",
	RCCTRL1_STATUS: "RCCTRL1_STATUS", RCCTRL0_STATUS: "RCCTRL0_STATUS",

	PATABLE: "PATABLE", TXFIFO: "FIFO",
}

var registersByName = func() map[string]Register {
	m := make(map[string]Register, len(registerNames))
	for r, n := range registerNames {
		// Status and config registers never share a name.
		m[n] = r
	}
	m["TXFIFO"] = TXFIFO
	m["RXFIFO"] = RXFIFO
	return m
}()

func (r Register) String() string {
	if n, ok := registerNames[r]; ok {
		return n
	}
	return fmt.Sprintf("%#02x", byte(r))
}

// IsConfig reports whether r is one of the configuration registers
// IOCFG2..TEST0.
func (r Register) IsConfig() bool {
	return r <= TEST0
}

// IsStatus reports whether r is a read-only status register.
func (r Register) IsStatus() bool {
	return r >= PARTNUM && r <= RCCTRL0_STATUS
}

// ParseRegister resolves a datasheet register name, or a number in any base
// strconv accepts, into a Register.
func ParseRegister(s string) (Register, error) {
	if r, ok := registersByName[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil || v > uint64(TXFIFO) {
		return 0, fmt.Errorf("unknown register %q", s)
	}
	return Register(v), nil
}

var commandNames = map[Command]string{
	SRES: "SRES", SFSTXON: "SFSTXON", SXOFF: "SXOFF", SCAL: "SCAL", SRX: "SRX",
	STX: "STX", SIDLE: "SIDLE", SAFC: "SAFC", SWOR: "SWOR", SPWD: "SPWD",
	SFRX: "SFRX", SFTX: "SFTX", SWORRST: "SWORRST", SNOP: "SNOP",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("%#02x", byte(c))
}

// Setting is one register write of a configuration table.
type Setting struct {
	Register Register
	Value    byte
}

func (s Setting) String() string {
	return fmt.Sprintf("%v=%#02x", s.Register, s.Value)
}

// Copied from TI datasheet.
func convertRSSI(rssi int) int {
	if rssi >= 128 {
		return (rssi-256)/2 - RSSI_OFFSET
	} else {
		return rssi/2 - RSSI_OFFSET
	}
}
