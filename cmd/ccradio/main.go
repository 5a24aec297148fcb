package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/hatstand/cc1101"
	"github.com/hatstand/cc1101/backend"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var metricsAddr = flag.String("metrics", "", "Address to serve Prometheus metrics on, e.g. :9101")
var syncWord = flag.Uint("sync", 0xd391, "Sync word")
var interval = flag.Duration("interval", 5*time.Millisecond, "Time between polls of GDO0")
var dedup = flag.Duration("dedup", 2*time.Second, "Drop repeats of a packet seen within this window")
var keepBad = flag.Bool("keep-bad-crc", false, "Also dump packets that failed the CRC check")

func dumpPacket(p *cc1101.Packet) {
	crc := "ok"
	if !p.CRCOK {
		crc = "bad"
	}
	fmt.Printf("%s rssi=%ddBm lqi=%d crc=%s\n", hex.EncodeToString(p.Data), p.RSSIdBm(), p.LQI, crc)
}

// watchdog pings systemd while the chip keeps answering.
func watchdog(ctx context.Context, dev *cc1101.Dev, logger *zap.SugaredLogger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := dev.CurrentState(ctx); err != nil {
				logger.Warnf("Skipping watchdog ping: %v", err)
				continue
			}
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

func main() {
	flag.Parse()

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
	opts.Registerer = prometheus.DefaultRegisterer
	dev := cc1101.New(port, opts)
	defer dev.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := dev.Init(ctx, profile.Registers, profile.PowerTable); err != nil {
		sugar.Fatalf("Failed to initialise CC1101: %v", err)
	}
	if err := dev.SetSyncWord(ctx, uint16(*syncWord)); err != nil {
		sugar.Fatalf("Failed to set sync word: %v", err)
	}

	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			sugar.Infof("Serving metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				sugar.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdog(ctx, dev, sugar)

	packetCh := make(chan *cc1101.Packet, 10)
	errCh := make(chan error, 1)
	go func() {
		errCh <- dev.Listen(ctx, packetCh, cc1101.ListenOptions{
			Interval:   *interval,
			Dedup:      *dedup,
			DropBadCRC: !*keepBad,
		})
	}()

	for {
		select {
		case p := <-packetCh:
			dumpPacket(p)
		case err := <-errCh:
			if errors.Is(err, context.Canceled) {
				sugar.Info("Shutting down...")
				return
			}
			sugar.Errorf("Stopped listening: %v", err)
			return
		}
	}
}
