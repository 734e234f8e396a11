package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsflink/pkg/crsf"
	"github.com/robotalks/crsflink/pkg/stubborn"
)

type fakeLink struct {
	queue     [][]byte
	unlocked  int
	sent      int
	stats     crsf.LinkStatistics
	statsSent int
}

func (l *fakeLink) GetMspMessage() []byte {
	if len(l.queue) == 0 {
		return nil
	}
	return append([]byte(nil), l.queue[0]...)
}

func (l *fakeLink) UnlockMspMessage() {
	l.unlocked++
	if len(l.queue) > 0 {
		l.queue = l.queue[1:]
	}
}

func (l *fakeLink) JustSentRFPacket() { l.sent++ }

func (l *fakeLink) PacketInterval() time.Duration { return 4 * time.Millisecond }

func (l *fakeLink) SetLinkStatistics(s crsf.LinkStatistics) { l.stats = s }

func (l *fakeLink) SendLinkStatistics() bool {
	l.statsSent++
	return true
}

// scriptedPeer confirms with a stuck bit until ackFrom confirm requests.
type scriptedPeer struct {
	ackFrom  int
	requests int
	received int
}

func (p *scriptedPeer) Receive(byte, []byte) { p.received++ }

func (p *scriptedPeer) ConfirmBit() bool {
	p.requests++
	return p.requests >= p.ackFrom
}

func mspFrame(t *testing.T, function byte, payload ...byte) []byte {
	f, err := crsf.NewMspWriteFrame(function, payload)
	require.NoError(t, err)
	return f
}

func newTestRelay() (*Relay, *fakeLink, *[][]byte) {
	link := &fakeLink{}
	peer := NewLoopback()
	var got [][]byte
	peer.OnMessage = func(msg []byte) { got = append(got, msg) }
	return New(link, peer), link, &got
}

func run(r *Relay, slots int) {
	for i := 0; i < slots; i++ {
		r.Tick()
	}
}

func TestRelay(t *testing.T) {
	r, link, got := newTestRelay()
	first := mspFrame(t, crsf.MspSetRxConfig, crsf.MspElrsModelID, 3)
	second := mspFrame(t, 0x20, 1, 2)
	link.queue = [][]byte{first, second}

	run(r, 40)
	require.Equal(t, [][]byte{first, second}, *got)
	require.Empty(t, link.queue)
	require.Equal(t, 2, link.unlocked)
	require.Equal(t, 40, link.sent)
	require.False(t, r.Sender().Active())

	s := r.Stats()
	require.Equal(t, uint64(40), s.Slots)
	require.Equal(t, uint64(2), s.Submitted)
	require.Equal(t, uint64(2), s.Delivered)
	require.Zero(t, s.Failed)
	require.Zero(t, s.Lost)
	require.Equal(t, 40, link.statsSent)
	require.Equal(t, byte(100), link.stats.UplinkLQ())
	require.Equal(t, byte(100), link.stats.DownlinkLQ())
}

func TestRelayIdle(t *testing.T) {
	r, link, got := newTestRelay()
	run(r, 10)
	require.Empty(t, *got)
	require.Zero(t, link.unlocked)
	require.Equal(t, uint64(10), r.Stats().Slots)
	require.Equal(t, 4*time.Millisecond, r.Timeout(nil))
}

func TestRelayLossyLink(t *testing.T) {
	r, link, got := newTestRelay()
	r.Lost = func(slot uint64) bool { return slot%3 == 0 }
	msg := make([]byte, crsf.MspBufferLen)
	for i := range msg {
		msg[i] = byte(i)
	}
	link.queue = [][]byte{msg}

	run(r, 100)
	require.Equal(t, [][]byte{msg}, *got)
	require.Equal(t, 1, link.unlocked)
	require.Equal(t, uint64(33), r.Stats().Lost)
	require.Equal(t, uint64(1), r.Stats().Delivered)
	require.Equal(t, byte(67), link.stats.UplinkLQ())
	require.Equal(t, byte(67), link.stats.DownlinkLQ())
}

func TestRelayAbandonedTransfer(t *testing.T) {
	link := &fakeLink{}
	peer := &scriptedPeer{ackFrom: 50}
	r := New(link, peer)
	link.queue = [][]byte{mspFrame(t, 0x20, 1, 2, 3)}

	// the stuck bit exhausts the wait count, the sender resyncs and the
	// first matching bit ends the transfer without delivery
	run(r, 49)
	require.Equal(t, stubborn.Resync, r.Sender().State())
	r.Tick()
	s := r.Stats()
	require.Equal(t, uint64(1), s.Submitted)
	require.Zero(t, s.Delivered)
	require.Equal(t, uint64(1), s.Failed)
	require.False(t, r.Sender().Active())

	r.Tick()
	require.Equal(t, 1, link.unlocked)
	require.Empty(t, link.queue)
}

func TestRelayTelemetrySlotsReportQuality(t *testing.T) {
	r, link, _ := newTestRelay()
	r.SetTelemetryRatio(4)
	r.Lost = func(slot uint64) bool { return slot <= 8 }
	run(r, 16)
	require.Equal(t, 4, link.statsSent)
	require.Equal(t, byte(50), link.stats.UplinkLQ())
	require.Equal(t, byte(50), link.stats.DownlinkLQ())
}

func TestRelayTelemetryRatio(t *testing.T) {
	r, link, got := newTestRelay()
	r.SetTelemetryRatio(4)
	require.Equal(t, 4*2*stubborn.MaxMissedPackets, r.Sender().MaxWaitCount())
	msg := mspFrame(t, 0x20, 9)
	link.queue = [][]byte{msg}

	// one chunk is confirmed every 4 packets
	run(r, 8)
	require.Empty(t, *got)
	run(r, 60)
	require.Equal(t, [][]byte{msg}, *got)

	r.SetTelemetryRatio(0)
	require.Equal(t, 2*stubborn.MaxMissedPackets, r.Sender().MaxWaitCount())
}

func TestRelayOversized(t *testing.T) {
	r, link, got := newTestRelay()
	link.queue = [][]byte{make([]byte, 80), mspFrame(t, 0x20)}
	run(r, 20)
	require.Len(t, *got, 1)
	require.Equal(t, uint64(1), r.Stats().Dropped)
	require.Equal(t, 2, link.unlocked)
}
