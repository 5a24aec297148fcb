package cc1101

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/hatstand/cc1101/mocks"
	"periph.io/x/conn/v3/physic"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSelfTest(t *testing.T) {
	ctx := context.Background()
	Convey("Init", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(VERSION) | READ_BURST, 0x00}, []byte{0x00, 0x14}),
			expectTx(port, []byte{byte(PARTNUM) | READ_BURST, 0x00}, []byte{0x00, 0x00}),
		)

		So(cc1101.SelfTest(ctx), ShouldBeNil)
	}))
	Convey("Wrong version", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(VERSION) | READ_BURST, 0x00}, []byte{0x00, 0x04}),
			expectTx(port, []byte{byte(PARTNUM) | READ_BURST, 0x00}, []byte{0x00, 0x00}),
		)

		So(cc1101.SelfTest(ctx), ShouldNotBeNil)
	}))
}

func TestReset(t *testing.T) {
	Convey("Reset", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		gomock.InOrder(
			port.EXPECT().Select(true).Return(nil),
			port.EXPECT().Select(false).Return(nil),
			port.EXPECT().Select(true).Return(nil),
			port.EXPECT().Ready().Return(true, nil),
			port.EXPECT().Tx([]byte{byte(SRES)}, gomock.Any()).Return(nil),
			port.EXPECT().Ready().Return(true, nil),
			port.EXPECT().Select(false).Return(nil),
		)

		So(cc1101.Reset(context.Background()), ShouldBeNil)
	}))
	Convey("Chip never ready", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		gomock.InOrder(
			port.EXPECT().Select(true).Return(nil),
			port.EXPECT().Select(false).Return(nil),
			port.EXPECT().Select(true).Return(nil),
			port.EXPECT().Ready().Return(false, nil).Times(2),
			port.EXPECT().Select(false).Return(nil),
		)

		err := cc1101.Reset(context.Background())
		So(errors.Is(err, ErrChipNotResponding), ShouldBeTrue)
	}))
}

func TestSetState(t *testing.T) {
	ctx := context.Background()
	Convey("RX", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{byte(SRX)}, nil))
		So(cc1101.SetRx(ctx), ShouldBeNil)
	}))
	Convey("TX", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{byte(STX)}, nil))
		So(cc1101.SetTx(ctx), ShouldBeNil)
	}))
	Convey("IDLE", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{byte(SIDLE)}, nil))
		So(cc1101.SetIdle(ctx), ShouldBeNil)
	}))
	Convey("Flush RX buffer", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(SIDLE)}, nil),
			expectTx(port, []byte{byte(SFRX)}, nil),
		)
		So(cc1101.FlushRx(ctx), ShouldBeNil)
	}))
	Convey("Flush RX buffer after a TX underflow", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(SIDLE)}, []byte{0x70}),
			expectTx(port, []byte{byte(SFTX)}, []byte{0x70}),
			expectTx(port, []byte{byte(SFRX)}, nil),
		)
		So(cc1101.FlushRx(ctx), ShouldBeNil)
	}))
	Convey("State changes wait for a packet operation", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{byte(SRX)}, nil))

		cc1101.lock.Lock()
		done := make(chan error, 1)
		go func() { done <- cc1101.SetRx(ctx) }()

		var early bool
		select {
		case <-done:
			early = true
		case <-time.After(20 * time.Millisecond):
		}
		So(early, ShouldBeFalse)

		cc1101.lock.Unlock()
		So(<-done, ShouldBeNil)
	}))
	Convey("Current state", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{byte(SNOP)}, []byte{0x60}))
		state, err := cc1101.CurrentState(ctx)
		So(err, ShouldBeNil)
		So(state, ShouldEqual, StateRXFIFOOverflow)
	}))
	Convey("Marc state", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{byte(MARCSTATE) | READ_BURST, 0x00}, []byte{0x00, 0xed}))
		state, err := cc1101.MarcState(ctx)
		So(err, ShouldBeNil)
		So(state, ShouldEqual, 0x0d)
	}))
}

func TestSyncWord(t *testing.T) {
	Convey("Sync word", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(SYNC1), 0xd3}, nil),
			expectTx(port, []byte{byte(SYNC0), 0x91}, nil),
		)
		So(cc1101.SetSyncWord(context.Background(), 0xd391), ShouldBeNil)
	}))
}

func TestConfigure(t *testing.T) {
	ctx := context.Background()
	Convey("Configure", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(
			expectTx(port, []byte{byte(FSCTRL1), 0x06}, nil),
			expectTx(port, []byte{byte(IOCFG2), 0x29}, nil),
			expectTx(port, []byte{byte(PKTLEN), 0x3d}, nil),
		)
		So(cc1101.Configure(ctx, []Setting{
			{FSCTRL1, 0x06},
			{IOCFG2, 0x29},
			{PKTLEN, 0x3d},
		}), ShouldBeNil)
	}))
	Convey("Status registers are rejected before writing", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		err := cc1101.Configure(ctx, []Setting{
			{FSCTRL1, 0x06},
			{MARCSTATE, 0x01},
		})
		So(err, ShouldNotBeNil)
	}))
	Convey("Power table", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{0x7e, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60}, nil))
		So(cc1101.LoadPowerTable(ctx, [8]byte{0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60, 0x60}), ShouldBeNil)
	}))
	Convey("Read config", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		w := make([]byte, 0x30)
		w[0] = byte(IOCFG2) | READ_BURST
		r := make([]byte, 0x30)
		for i := 1; i < len(r); i++ {
			r[i] = byte(i - 1)
		}
		inOrder(expectTx(port, w, r))

		config, err := cc1101.ReadConfig(ctx)
		So(err, ShouldBeNil)
		So(config, ShouldHaveLength, 0x2f)
		So(config[TEST0], ShouldEqual, 0x2e)
		So(config[PKTLEN], ShouldEqual, byte(PKTLEN))
	}))
}

func TestFrequency(t *testing.T) {
	xosc := 26 * physic.MegaHertz
	Convey("Carrier frequency", t, func() {
		w := toFreqWord(xosc, 868*physic.MegaHertz)
		So(w, ShouldEqual, freqWord(0x216276))
		So(w.bytes(), ShouldResemble, []byte{0x21, 0x62, 0x76})
		So(parseFreqWord(w.bytes()), ShouldEqual, w)
		diff := 868*physic.MegaHertz - w.frequency(xosc)
		So(int64(diff), ShouldBeBetween, 0, int64(400*physic.Hertz))
	})
	Convey("Deviation", t, func() {
		So(nearestDeviatn(xosc, 47607*physic.Hertz), ShouldEqual, deviatn(0x47))
		So(nearestDeviatn(xosc, 0), ShouldEqual, deviatn(0x00))
		So(nearestDeviatn(xosc, physic.MegaHertz), ShouldEqual, deviatn(0x77))
		for v := deviatn(0); v < 0x80; v++ {
			if v&0x08 == 0 {
				So(nearestDeviatn(xosc, v.frequency(xosc)), ShouldEqual, v)
			}
		}
	})
	Convey("Set frequency", t, WithMocks(t, func(port *mocks.MockPort, cc1101 *Dev) {
		inOrder(expectTx(port, []byte{byte(FREQ2) | WRITE_BURST, 0x21, 0x62, 0x76}, nil))
		So(cc1101.SetFrequency(context.Background(), 868*physic.MegaHertz), ShouldBeNil)
	}))
}
