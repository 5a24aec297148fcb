package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/hatstand/cc1101"
	"github.com/hatstand/cc1101/backend"
	"periph.io/x/conn/v3/physic"
)

var configure = flag.Bool("configure", false, "Apply the register profile before dumping")
var freq = flag.String("freq", "", "Carrier frequency to program after configuring, e.g. 868.3MHz")

func main() {
	flag.Parse()

	logger, err := backend.Logger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	port, err := backend.Open()
	if err != nil {
		sugar.Fatalf("Failed to open port: %v", err)
	}
	opts := cc1101.DefaultOptions()
	opts.Logger = logger
	dev := cc1101.New(port, opts)
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dev.Reset(ctx); err != nil {
		sugar.Fatalf("Failed to reset: %v", err)
	}
	if err := dev.SelfTest(ctx); err != nil {
		sugar.Errorf("%v", err)
	}

	if *configure {
		profile, err := backend.Profile()
		if err != nil {
			sugar.Fatalf("Failed to load profile: %v", err)
		}
		if err := dev.Configure(ctx, profile.Registers); err != nil {
			sugar.Fatalf("Failed to configure: %v", err)
		}
		if err := dev.LoadPowerTable(ctx, profile.PowerTable); err != nil {
			sugar.Fatalf("Failed to load power table: %v", err)
		}
	}
	if *freq != "" {
		var f physic.Frequency
		if err := f.Set(*freq); err != nil {
			sugar.Fatalf("Bad frequency %q: %v", *freq, err)
		}
		if err := dev.SetFrequency(ctx, f); err != nil {
			sugar.Fatalf("Failed to set frequency: %v", err)
		}
	}

	regs, err := dev.ReadConfig(ctx)
	if err != nil {
		sugar.Fatalf("%v", err)
	}
	for r := cc1101.IOCFG2; r <= cc1101.TEST0; r++ {
		fmt.Printf("%-8v 0x%02x\n", r, regs[r])
	}

	f, err := dev.Frequency(ctx)
	if err != nil {
		sugar.Fatalf("%v", err)
	}
	marc, err := dev.MarcState(ctx)
	if err != nil {
		sugar.Fatalf("%v", err)
	}
	fmt.Printf("Frequency: %v\nState:     %v (MARCSTATE 0x%02x)\n", f, dev.LastStatus().State(), marc)
}
