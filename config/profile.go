// Package config loads CC1101 register profiles.
//
// A profile is an ordered register table and a PA table:
//
//	registers:
//	  - {register: FSCTRL1, value: 0x06}
//	  - {register: 0x0d, value: 0x21}
//	pa_table: [0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60]
//
// Registers are written in the order listed.
package config

import (
	"fmt"
	"os"

	"github.com/hatstand/cc1101"
	"gopkg.in/yaml.v3"
)

type Profile struct {
	Registers  []cc1101.Setting
	PowerTable [8]byte
}

type profileFile struct {
	Registers  []settingFile `yaml:"registers"`
	PowerTable []uint8       `yaml:"pa_table"`
}

type settingFile struct {
	Register register `yaml:"register"`
	Value    uint8    `yaml:"value"`
}

type register cc1101.Register

func (r *register) UnmarshalYAML(value *yaml.Node) error {
	reg, err := cc1101.ParseRegister(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*r = register(reg)
	return nil
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, nil
}

func Parse(data []byte) (*Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.PowerTable) > 8 {
		return nil, fmt.Errorf("PA table has %d entries, at most 8", len(f.PowerTable))
	}

	p := &Profile{}
	for _, s := range f.Registers {
		r := cc1101.Register(s.Register)
		if !r.IsConfig() {
			return nil, fmt.Errorf("%v is not a configuration register", r)
		}
		p.Registers = append(p.Registers, cc1101.Setting{Register: r, Value: s.Value})
	}
	copy(p.PowerTable[:], f.PowerTable)
	return p, nil
}

// Default868 is a 2-FSK profile at 868.3MHz with variable length packets,
// CRC and appended status bytes. GDO0 asserts on sync word and deasserts at
// the end of the packet.
var Default868 = Profile{
	Registers: []cc1101.Setting{
		{Register: cc1101.FSCTRL1, Value: 0x06},
		{Register: cc1101.FSCTRL0, Value: 0x00},
		{Register: cc1101.FREQ2, Value: 0x21},
		{Register: cc1101.FREQ1, Value: 0x62},
		{Register: cc1101.FREQ0, Value: 0x76},
		{Register: cc1101.MDMCFG4, Value: 0xf5},
		{Register: cc1101.MDMCFG3, Value: 0x83},
		{Register: cc1101.MDMCFG2, Value: 0x13},
		{Register: cc1101.MDMCFG1, Value: 0x22},
		{Register: cc1101.MDMCFG0, Value: 0xf8},
		{Register: cc1101.CHANNR, Value: 0x00},
		{Register: cc1101.DEVIATN, Value: 0x15},
		{Register: cc1101.FREND1, Value: 0x56},
		{Register: cc1101.FREND0, Value: 0x10},
		{Register: cc1101.MCSM0, Value: 0x18},
		// RXOFF and TXOFF both go to IDLE.
		{Register: cc1101.MCSM1, Value: 0x00},
		{Register: cc1101.FOCCFG, Value: 0x16},
		{Register: cc1101.BSCFG, Value: 0x6c},
		{Register: cc1101.AGCCTRL2, Value: 0x03},
		{Register: cc1101.AGCCTRL1, Value: 0x40},
		{Register: cc1101.AGCCTRL0, Value: 0x91},
		{Register: cc1101.FSCAL3, Value: 0xe9},
		{Register: cc1101.FSCAL2, Value: 0x2a},
		{Register: cc1101.FSCAL1, Value: 0x00},
		{Register: cc1101.FSCAL0, Value: 0x1f},
		{Register: cc1101.FSTEST, Value: 0x59},
		{Register: cc1101.TEST2, Value: 0x81},
		{Register: cc1101.TEST1, Value: 0x35},
		{Register: cc1101.TEST0, Value: 0x09},
		{Register: cc1101.IOCFG2, Value: 0x29},
		{Register: cc1101.IOCFG0, Value: 0x06},
		// Append status, no address check.
		{Register: cc1101.PKTCTRL1, Value: 0x04},
		// Variable length, CRC.
		{Register: cc1101.PKTCTRL0, Value: 0x05},
		{Register: cc1101.ADDR, Value: 0x00},
		{Register: cc1101.PKTLEN, Value: cc1101.MaxPayload},
		{Register: cc1101.SYNC1, Value: 0xd3},
		{Register: cc1101.SYNC0, Value: 0x91},
		{Register: cc1101.FIFOTHR, Value: 0x07},
	},
	PowerTable: [8]byte{0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60},
}
