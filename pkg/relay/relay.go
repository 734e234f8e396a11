// Package relay carries the MSP messages queued by the frame engine over a
// radio link using the stubborn sender.
package relay

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
	fx "github.com/robotalks/crsflink/pkg/framework"
	"github.com/robotalks/crsflink/pkg/stubborn"
)

// Radio packet layout.
const (
	// ChunkSize is the MSP payload of one radio packet.
	ChunkSize = 5
	// MaxPackageIndex is the resync marker of the stubborn protocol.
	MaxPackageIndex = 14
	// TelemetryBurst is the number of telemetry packets in a row.
	TelemetryBurst = 1
	// LQWindow is the number of packets link quality is computed over.
	LQWindow = 100
)

// Link is the engine side. It is implemented by *link.Engine.
type Link interface {
	GetMspMessage() []byte
	UnlockMspMessage()
	JustSentRFPacket()
	PacketInterval() time.Duration
	SetLinkStatistics(crsf.LinkStatistics)
	SendLinkStatistics() bool
}

// Peer is the remote end of the radio link.
type Peer interface {
	Receive(index byte, data []byte)
	ConfirmBit() bool
}

// Stats counts relay activity.
type Stats struct {
	Slots     uint64
	Lost      uint64
	Submitted uint64
	// Delivered counts messages the peer confirmed completely.
	Delivered uint64
	// Failed counts transfers given up through a resync.
	Failed  uint64
	Dropped uint64
}

// Relay is a framework.Device sending one radio packet per RC packet
// interval. It must run on the loop of the engine.
type Relay struct {
	Link Link
	Peer Peer
	// Lost tells whether the packet of slot is lost, both directions.
	Lost func(slot uint64) bool

	sender   *stubborn.Sender
	tlmRatio int
	busy     bool
	stats    Stats
	uplink   lqWindow
	downlink lqWindow
}

// New creates a Relay.
func New(link Link, peer Peer) *Relay {
	r := &Relay{Link: link, Peer: peer, sender: stubborn.New(MaxPackageIndex)}
	r.SetTelemetryRatio(1)
	return r
}

// SetTelemetryRatio sets one telemetry packet every n packets. Confirm bits
// only travel in telemetry packets, so 0 is taken as 1.
func (r *Relay) SetTelemetryRatio(n int) {
	if n < 1 {
		n = 1
	}
	r.tlmRatio = n
	r.sender.SetRate(n, TelemetryBurst)
}

// Stats returns the counters.
func (r *Relay) Stats() Stats {
	return r.stats
}

// Sender exposes the stubborn sender.
func (r *Relay) Sender() *stubborn.Sender {
	return r.sender
}

// Timeout implements framework.Device.
func (r *Relay) Timeout(cc fx.ControlContext) time.Duration {
	r.Tick()
	return r.Link.PacketInterval()
}

// Tick sends one radio packet. Every telemetry slot also reports the link
// quality to the handset.
func (r *Relay) Tick() {
	r.stats.Slots++
	slot := r.stats.Slots
	r.Link.JustSentRFPacket()

	if !r.sender.Active() {
		if r.busy {
			r.busy = false
			r.Link.UnlockMspMessage()
		}
		if msg := r.Link.GetMspMessage(); msg != nil {
			if err := r.sender.Submit(msg, ChunkSize); err != nil {
				glog.Warningf("relay: msp message of %d bytes dropped: %v", len(msg), err)
				r.stats.Dropped++
				r.Link.UnlockMspMessage()
			} else {
				glog.V(2).Infof("relay: sending msp message of %d bytes", len(msg))
				r.stats.Submitted++
				r.busy = true
			}
		}
	}

	lost := r.Lost != nil && r.Lost(slot)
	tlm := slot%uint64(r.tlmRatio) == 0
	r.uplink.add(!lost)
	if tlm {
		r.downlink.add(!lost)
		r.sendLinkStatistics()
	}
	if lost {
		r.stats.Lost++
		return
	}
	r.Peer.Receive(r.sender.CurrentPayload())
	if tlm {
		r.confirm(r.Peer.ConfirmBit())
	}
}

func (r *Relay) confirm(bit bool) {
	prev := r.sender.State()
	r.sender.Confirm(bit)
	if !r.busy || r.sender.Active() {
		return
	}
	if prev == stubborn.WaitUntilNextConfirm {
		r.stats.Delivered++
		return
	}
	r.stats.Failed++
	glog.Warningf("relay: msp transfer abandoned after %s", prev)
}

// LinkStatistics returns the link quality of the simulated radio link.
func (r *Relay) LinkStatistics() crsf.LinkStatistics {
	var s crsf.LinkStatistics
	s[2] = r.uplink.percent()   // uplink LQ
	s[8] = r.downlink.percent() // downlink LQ
	return s
}

func (r *Relay) sendLinkStatistics() {
	r.Link.SetLinkStatistics(r.LinkStatistics())
	r.Link.SendLinkStatistics()
}

// lqWindow is the share of received packets over the last LQWindow.
type lqWindow struct {
	hits  [LQWindow]bool
	pos   int
	n     int
	count int
}

func (w *lqWindow) add(ok bool) {
	if w.n == LQWindow {
		if w.hits[w.pos] {
			w.count--
		}
	} else {
		w.n++
	}
	w.hits[w.pos] = ok
	if ok {
		w.count++
	}
	w.pos = (w.pos + 1) % LQWindow
}

func (w *lqWindow) percent() byte {
	if w.n == 0 {
		return 0
	}
	return byte(w.count * 100 / w.n)
}
