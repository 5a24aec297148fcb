package cc1101

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	sent        prometheus.Counter
	received    prometheus.Counter
	crcFailures prometheus.Counter
	duplicates  prometheus.Counter
	fifoErrors  *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc1101_packets_sent_total",
			Help: "Packets transmitted.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc1101_packets_received_total",
			Help: "Packets read out of the RX FIFO.",
		}),
		crcFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc1101_crc_failures_total",
			Help: "Received packets with a failed CRC check.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc1101_duplicates_total",
			Help: "Received packets dropped as repeats.",
		}),
		fifoErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cc1101_fifo_errors_total",
			Help: "RX overflows and TX underflows recovered by flushing.",
		}, []string{"fifo"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cc1101_timeouts_total",
			Help: "Bounded waits on the ready or done line that expired.",
		}, []string{"line"}),
	}
	if reg != nil {
		reg.MustRegister(m.sent, m.received, m.crcFailures, m.duplicates, m.fifoErrors, m.timeouts)
	}
	return m
}
