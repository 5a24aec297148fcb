package cc1101

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/hatstand/cc1101/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func expectDoneEdge(port *mocks.MockPort, edge bool) []*gomock.Call {
	return []*gomock.Call{port.EXPECT().DoneEdge().Return(edge, nil)}
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	Convey("Send", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(SFTX)}, nil),
			expectDoneEdge(port, false),
			expectTx(port, []byte{0x7f, 0x05, 0x01, 0x02, 0x03, 0x04, 0x05}, nil),
			expectTx(port, []byte{byte(STX)}, nil),
			expectDoneEdge(port, true),
			expectTx(port, []byte{byte(SFTX)}, nil),
		)

		So(cc1101.Send(ctx, []byte{1, 2, 3, 4, 5}), ShouldBeNil)
		So(testutil.ToFloat64(cc1101.metrics.sent), ShouldEqual, 1)
	}))

	Convey("Configure, load power table and send", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		var settings []Setting
		var calls [][]*gomock.Call
		for i := 0; i < 30; i++ {
			s := Setting{Register(i), byte(0x80 + i)}
			settings = append(settings, s)
			calls = append(calls, expectTx(port, []byte{byte(s.Register), s.Value}, nil))
		}
		calls = append(calls,
			expectTx(port, []byte{0x7e, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60}, nil),
			expectTx(port, []byte{byte(SFTX)}, nil),
			expectDoneEdge(port, false),
			expectTx(port, []byte{0x7f, 0x05, 0x01, 0x02, 0x03, 0x04, 0x05}, nil),
			expectTx(port, []byte{byte(STX)}, nil),
			expectDoneEdge(port, true),
			expectTx(port, []byte{byte(SFTX)}, nil),
		)
		inOrder(calls...)

		So(cc1101.Configure(ctx, settings), ShouldBeNil)
		So(cc1101.LoadPowerTable(ctx, [8]byte{0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60}), ShouldBeNil)
		So(cc1101.Send(ctx, []byte{1, 2, 3, 4, 5}), ShouldBeNil)
	}))

	Convey("Payload too large", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		err := cc1101.Send(ctx, make([]byte, MaxPayload+1))
		So(errors.Is(err, ErrPayloadTooLarge), ShouldBeTrue)
	}))

	Convey("Largest payload", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		w := make([]byte, MaxPayload+2)
		w[0] = 0x7f
		w[1] = MaxPayload
		inOrder(
			expectTx(port, []byte{byte(SFTX)}, nil),
			expectDoneEdge(port, false),
			expectTx(port, w, nil),
			expectTx(port, []byte{byte(STX)}, nil),
			expectDoneEdge(port, true),
			expectTx(port, []byte{byte(SFTX)}, nil),
		)
		So(cc1101.Send(ctx, make([]byte, MaxPayload)), ShouldBeNil)
	}))

	Convey("Done signal never arrives", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(SFTX)}, nil),
			expectDoneEdge(port, false),
			expectTx(port, []byte{0x7f, 0x01, 0xaa}, nil),
			expectTx(port, []byte{byte(STX)}, nil),
			[]*gomock.Call{port.EXPECT().DoneEdge().Return(false, nil).Times(3)},
			expectTx(port, []byte{byte(SIDLE)}, nil),
			expectTx(port, []byte{byte(SFRX)}, nil),
			expectTx(port, []byte{byte(SFTX)}, nil),
		)

		err := cc1101.Send(ctx, []byte{0xaa})
		So(errors.Is(err, ErrDoneSignalTimeout), ShouldBeTrue)
		So(testutil.ToFloat64(cc1101.metrics.timeouts.WithLabelValues("done")), ShouldEqual, 1)
		So(testutil.ToFloat64(cc1101.metrics.sent), ShouldEqual, 0)
	}))

	Convey("RX FIFO overflow is flushed before sending", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(SFTX)}, []byte{0x60}),
			expectTx(port, []byte{byte(SIDLE)}, []byte{0x60}),
			expectTx(port, []byte{byte(SFRX)}, []byte{0x60}),
			expectTx(port, []byte{byte(SFTX)}, nil),
			expectDoneEdge(port, false),
			expectTx(port, []byte{0x7f, 0x02, 0x01, 0x02}, nil),
			expectTx(port, []byte{byte(STX)}, nil),
			expectDoneEdge(port, true),
			expectTx(port, []byte{byte(SFTX)}, nil),
		)

		So(cc1101.Send(ctx, []byte{1, 2}), ShouldBeNil)
		So(testutil.ToFloat64(cc1101.metrics.fifoErrors.WithLabelValues("rx")), ShouldEqual, 1)
		So(testutil.ToFloat64(cc1101.metrics.sent), ShouldEqual, 1)
	}))

	Convey("Underflow is retried once", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		attempt := func(finalStatus byte) [][]*gomock.Call {
			return [][]*gomock.Call{
				expectTx(port, []byte{byte(SFTX)}, nil),
				expectDoneEdge(port, false),
				expectTx(port, []byte{0x7f, 0x01, 0xaa}, nil),
				expectTx(port, []byte{byte(STX)}, nil),
				expectDoneEdge(port, true),
				expectTx(port, []byte{byte(SFTX)}, []byte{finalStatus}),
			}
		}
		Convey("and recovers", func() {
			inOrder(append(attempt(0x70), attempt(0x00)...)...)
			So(cc1101.Send(ctx, []byte{0xaa}), ShouldBeNil)
			So(testutil.ToFloat64(cc1101.metrics.fifoErrors.WithLabelValues("tx")), ShouldEqual, 1)
		})
		Convey("and gives up", func() {
			inOrder(append(attempt(0x70), attempt(0x70)...)...)
			err := cc1101.Send(ctx, []byte{0xaa})
			So(errors.Is(err, ErrFifoUnderflow), ShouldBeTrue)
		})
	}))
}

func rxBytes(port *mocks.MockPort, v byte) [][]*gomock.Call {
	return [][]*gomock.Call{
		expectTx(port, []byte{byte(RXBYTES) | READ_BURST, 0x00}, []byte{0x00, v}),
		expectTx(port, []byte{byte(RXBYTES) | READ_BURST, 0x00}, []byte{0x00, v}),
	}
}

func flushRx(port *mocks.MockPort) [][]*gomock.Call {
	return [][]*gomock.Call{
		expectTx(port, []byte{byte(SIDLE)}, nil),
		expectTx(port, []byte{byte(SFRX)}, nil),
	}
}

func TestReceive(t *testing.T) {
	ctx := context.Background()
	Convey("Empty FIFO", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		var calls [][]*gomock.Call
		calls = append(calls, rxBytes(port, 0x00)...)
		calls = append(calls, flushRx(port)...)
		inOrder(calls...)

		p, err := cc1101.Receive(ctx)
		So(p, ShouldBeNil)
		So(errors.Is(err, ErrNoPacket), ShouldBeTrue)
	}))

	Convey("One packet", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		var calls [][]*gomock.Call
		calls = append(calls, rxBytes(port, 0x06)...)
		calls = append(calls,
			expectTx(port, []byte{0xbf, 0x00}, []byte{0x00, 0x03}),
			expectTx(port, []byte{0xff, 0x00, 0x00, 0x00}, []byte{0x00, 0xde, 0xad, 0x42}),
			expectTx(port, []byte{0xff, 0x00, 0x00}, []byte{0x00, 0x20, 0x80 | 0x2f}),
		)
		calls = append(calls, flushRx(port)...)
		inOrder(calls...)

		p, err := cc1101.Receive(ctx)
		So(err, ShouldBeNil)
		So(p.Data, ShouldResemble, []byte{0xde, 0xad, 0x42})
		So(p.CRCOK, ShouldBeTrue)
		So(p.LQI, ShouldEqual, 0x2f)
		So(p.RSSI, ShouldEqual, 0x20)
		So(p.RSSIdBm(), ShouldEqual, 16-74)
		So(testutil.ToFloat64(cc1101.metrics.received), ShouldEqual, 1)
		So(testutil.ToFloat64(cc1101.metrics.crcFailures), ShouldEqual, 0)
	}))

	Convey("Bad CRC", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		var calls [][]*gomock.Call
		calls = append(calls, rxBytes(port, 0x03)...)
		calls = append(calls,
			expectTx(port, []byte{0xbf, 0x00}, []byte{0x00, 0x00}),
			expectTx(port, []byte{0xff, 0x00, 0x00}, []byte{0x00, 0xf0, 0x11}),
		)
		calls = append(calls, flushRx(port)...)
		inOrder(calls...)

		p, err := cc1101.Receive(ctx)
		So(err, ShouldBeNil)
		So(p.Data, ShouldBeEmpty)
		So(p.CRCOK, ShouldBeFalse)
		So(p.RSSIdBm(), ShouldEqual, -8-74)
		So(testutil.ToFloat64(cc1101.metrics.crcFailures), ShouldEqual, 1)
	}))

	Convey("RXBYTES changing while read", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		var calls [][]*gomock.Call
		calls = append(calls,
			expectTx(port, []byte{byte(RXBYTES) | READ_BURST, 0x00}, []byte{0x00, 0x02}),
			expectTx(port, []byte{byte(RXBYTES) | READ_BURST, 0x00}, []byte{0x00, 0x00}),
			expectTx(port, []byte{byte(RXBYTES) | READ_BURST, 0x00}, []byte{0x00, 0x00}),
		)
		calls = append(calls, flushRx(port)...)
		inOrder(calls...)

		_, err := cc1101.Receive(ctx)
		So(errors.Is(err, ErrNoPacket), ShouldBeTrue)
	}))

	Convey("Corrupt length", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		var calls [][]*gomock.Call
		calls = append(calls, rxBytes(port, 0x10)...)
		calls = append(calls, expectTx(port, []byte{0xbf, 0x00}, []byte{0x00, 0xc8}))
		calls = append(calls, flushRx(port)...)
		inOrder(calls...)

		_, err := cc1101.Receive(ctx)
		So(errors.Is(err, ErrBadLength), ShouldBeTrue)
	}))

	Convey("Overflow", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		Convey("recovered by a flush", func() {
			var calls [][]*gomock.Call
			calls = append(calls, rxBytes(port, 0xc0)...)
			calls = append(calls, flushRx(port)...)
			calls = append(calls, rxBytes(port, 0x00)...)
			calls = append(calls, flushRx(port)...)
			inOrder(calls...)

			_, err := cc1101.Receive(ctx)
			So(errors.Is(err, ErrNoPacket), ShouldBeTrue)
			So(testutil.ToFloat64(cc1101.metrics.fifoErrors.WithLabelValues("rx")), ShouldEqual, 1)
		})
		Convey("persisting", func() {
			var calls [][]*gomock.Call
			calls = append(calls, rxBytes(port, 0xc0)...)
			calls = append(calls, flushRx(port)...)
			calls = append(calls, rxBytes(port, 0xc0)...)
			calls = append(calls, flushRx(port)...)
			inOrder(calls...)

			_, err := cc1101.Receive(ctx)
			So(errors.Is(err, ErrFifoOverflow), ShouldBeTrue)
		})
	}))
}

func TestPollDataReady(t *testing.T) {
	ctx := context.Background()
	Convey("No packet", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		port.EXPECT().Done().Return(false, nil)
		ready, err := cc1101.PollDataReady(ctx)
		So(err, ShouldBeNil)
		So(ready, ShouldBeFalse)
	}))
	Convey("Packet arriving", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		gomock.InOrder(
			port.EXPECT().Done().Return(true, nil).Times(2),
			port.EXPECT().Done().Return(false, nil),
		)
		ready, err := cc1101.PollDataReady(ctx)
		So(err, ShouldBeNil)
		So(ready, ShouldBeTrue)
	}))
	Convey("Done line stuck high", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		port.EXPECT().Done().Return(true, nil).Times(4)
		_, err := cc1101.PollDataReady(ctx)
		So(errors.Is(err, ErrDoneSignalTimeout), ShouldBeTrue)
	}))
}
