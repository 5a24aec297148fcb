// Package backend opens the Port selected on the command line.
package backend

import (
	"flag"
	"fmt"

	"github.com/hatstand/cc1101"
	"github.com/hatstand/cc1101/cdevhost"
	"github.com/hatstand/cc1101/embdhost"
	"github.com/hatstand/cc1101/periphhost"
	"github.com/hatstand/cc1101/sim"
	"periph.io/x/conn/v3/physic"
)

var name = flag.String("backend", "periph", "How the CC1101 is attached: periph, cdev, embd or sim")

// Bit-banged backends (cdev, embd).
var (
	sckPin  = flag.Int("sck", 11, "GPIO connected to CC1101 SCLK (BCM numbering)")
	mosiPin = flag.Int("mosi", 10, "GPIO connected to CC1101 SI (BCM numbering)")
	misoPin = flag.Int("miso", 9, "GPIO connected to CC1101 SO (BCM numbering)")
	csPin   = flag.Int("cs", 8, "GPIO connected to CC1101 CSn (BCM numbering)")
	gdo0Pin = flag.Int("gdo0", 24, "GPIO connected to CC1101 GDO0 (BCM numbering)")
	chip    = flag.String("gpiochip", "gpiochip0", "GPIO character device for the cdev backend")
)

// Hardware SPI backend (periph).
var (
	spiDev   = flag.String("spi", "", "SPI port for the periph backend, e.g. /dev/spidev0.0")
	spiSpeed = flag.Int64("spi-khz", 1000, "SPI clock in kHz for the periph backend")
)

// Open returns the port named by -backend. The port is also an io.Closer.
func Open() (cc1101.Port, error) {
	switch *name {
	case "periph":
		p, err := periphhost.Open(periphhost.Config{
			SPI:   *spiDev,
			Speed: physic.Frequency(*spiSpeed) * physic.KiloHertz,
			CS:    fmt.Sprintf("GPIO%d", *csPin),
			MISO:  fmt.Sprintf("GPIO%d", *misoPin),
			GDO0:  fmt.Sprintf("GPIO%d", *gdo0Pin),
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "cdev":
		p, err := cdevhost.Open(*chip, cdevhost.Pins{
			SCK: *sckPin, MOSI: *mosiPin, MISO: *misoPin, CS: *csPin, GDO0: *gdo0Pin,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "embd":
		p, err := embdhost.Open(embdhost.Pins{
			SCK: *sckPin, MOSI: *mosiPin, MISO: *misoPin, CS: *csPin, GDO0: *gdo0Pin,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "sim":
		return sim.New(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", *name)
}
