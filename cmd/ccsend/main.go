package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/hatstand/cc1101"
	"github.com/hatstand/cc1101/backend"
)

var payload = flag.String("payload", "", "Packet payload in hexadecimal")
var syncWord = flag.Uint("sync", 0xd391, "Sync word")
var repeat = flag.Int("repeat", 3, "Copies sent back to back each round")
var rounds = flag.Int("rounds", 1, "Number of rounds")
var gap = flag.Duration("gap", time.Second, "Time between rounds")

func main() {
	flag.Parse()

	packet, err := hex.DecodeString(*payload)
	if err != nil || len(packet) == 0 || len(packet) > cc1101.MaxPayload {
		log.Fatalf("Payload must be 1 to %d bytes in hexadecimal", cc1101.MaxPayload)
	}

	logger, err := backend.Logger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	profile, err := backend.Profile()
	if err != nil {
		sugar.Fatalf("Failed to load profile: %v", err)
	}
	port, err := backend.Open()
	if err != nil {
		sugar.Fatalf("Failed to open port: %v", err)
	}
	opts := cc1101.DefaultOptions()
	opts.Logger = logger
	dev := cc1101.New(port, opts)
	defer dev.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := dev.Init(ctx, profile.Registers, profile.PowerTable); err != nil {
		sugar.Fatalf("Failed to initialise CC1101: %v", err)
	}
	if err := dev.SetSyncWord(ctx, uint16(*syncWord)); err != nil {
		sugar.Fatalf("Failed to set sync word: %v", err)
	}

	sugar.Infof("Sending %s", *payload)
	for i := 0; i < *rounds; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(*gap):
			}
		}
		// Receivers miss packets, so each is sent several times.
		for j := 0; j < *repeat; j++ {
			if err := dev.Send(ctx, packet); err != nil {
				sugar.Errorf("Failed to send packet: %v", err)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}
