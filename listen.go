package cc1101

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
)

type ListenOptions struct {
	// Interval between polls of the done line.
	Interval time.Duration
	// Dedup drops packets with the same payload as one received within the
	// window. Zero delivers every packet.
	Dedup time.Duration
	// DropBadCRC drops packets that failed the CRC check.
	DropBadCRC bool
}

// Listen puts the chip in RX and delivers every packet it receives to ch
// until ctx is done. Errors that a flush recovers from are logged and
// listening continues; any other error is returned.
func (d *Dev) Listen(ctx context.Context, ch chan<- *Packet, opts ListenOptions) error {
	var seen *cache.Cache
	if opts.Dedup > 0 {
		seen = cache.New(opts.Dedup, 2*opts.Dedup)
	}

	if err := d.SetRx(ctx); err != nil {
		return err
	}
	d.log.Info("Waiting for packets...")
	for {
		if err := sleep(ctx, opts.Interval); err != nil {
			return err
		}
		ready, err := d.PollDataReady(ctx)
		if err != nil {
			if err := d.listenError(ctx, err); err != nil {
				return err
			}
			continue
		}
		if !ready {
			continue
		}

		d.log.Debug("Packet arrived")
		p, err := d.Receive(ctx)
		if rerr := d.SetRx(ctx); rerr != nil {
			return rerr
		}
		if err != nil {
			if err := d.listenError(ctx, err); err != nil {
				return err
			}
			continue
		}

		if opts.DropBadCRC && !p.CRCOK {
			d.log.Debugf("Dropping packet with bad CRC: %x", p.Data)
			continue
		}
		if seen != nil {
			if err := seen.Add(hex.EncodeToString(p.Data), nil, cache.DefaultExpiration); err != nil {
				d.metrics.duplicates.Inc()
				d.log.Debugf("Dropping repeated packet: %x", p.Data)
				continue
			}
		}

		select {
		case ch <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dev) listenError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !recoverable(err) {
		return err
	}
	if errors.Is(err, ErrNoPacket) {
		d.log.Debug("Done signal without a packet")
	} else {
		d.log.Warnf("Failed to receive: %v", err)
		// A timed out done wait can leave part of a packet in the FIFO.
		if rerr := d.FlushRx(ctx); rerr != nil {
			return rerr
		}
		if rerr := d.SetRx(ctx); rerr != nil {
			return rerr
		}
	}
	return nil
}
