package link

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
)

// Sync timings. Margins are in 0.1us.
const (
	// SyncPacketInterval is the period of sync frames to the handset.
	SyncPacketInterval = 200 * time.Millisecond
	// SyncSettlePeriod delays autotune after a rate change or reconnect.
	SyncSettlePeriod = 2 * time.Second

	SyncMarginMin     int32 = 1000
	SyncMarginMax     int32 = 4000
	SyncMarginDefault int32 = SyncMarginMax

	syncHeadroom int32 = 100
	syncLPFBeta        = 3
)

type syncState struct {
	interval time.Duration
	active   bool
	autotune bool

	margin   int32
	offset   int32
	lastSent time.Time
	settle   time.Time

	marginLPF lpf
	offsetLPF lpf
}

func newSyncState(interval time.Duration) syncState {
	return syncState{
		interval:  interval,
		active:    true,
		margin:    SyncMarginDefault,
		marginLPF: newLPF(syncLPFBeta),
		offsetLPF: newLPF(syncLPFBeta),
	}
}

func (s *syncState) begin(autotune bool, now time.Time) {
	s.autotune = autotune
	s.offset = 0
	s.lastSent = time.Time{}
	s.margin = SyncMarginDefault
	if autotune {
		s.retune(now)
	}
}

func (s *syncState) retune(now time.Time) {
	s.settle = now
	s.margin = SyncMarginMin
	s.marginLPF.init(0)
	s.offsetLPF.init(0)
}

func (s *syncState) connected(now time.Time) {
	if s.autotune {
		s.settle = now
		s.marginLPF.init(0)
		s.offsetLPF.init(0)
	}
}

func (s *syncState) disconnected(now time.Time) {
	if s.autotune {
		s.settle = now
		s.margin = SyncMarginMin
		s.offset = 0
		s.lastSent = time.Time{}
	}
}

// PacketInterval returns the requested RC packet interval.
func (e *Engine) PacketInterval() time.Duration {
	return e.sync.interval
}

// SetSyncParams sets the RC packet interval requested from the handset and
// recomputes the byte budgets.
func (e *Engine) SetSyncParams(interval time.Duration) {
	e.sync.interval = interval
	if e.sync.autotune {
		e.sync.retune(e.now())
	}
	e.adjustMaxPacketSize()
	glog.V(1).Infof("crsf: packet interval %v", interval)
}

// EnableSync resumes sync frames.
func (e *Engine) EnableSync() {
	e.sync.active = true
}

// DisableSync stops sync frames.
func (e *Engine) DisableSync() {
	e.sync.active = false
}

// SyncOffset returns the last measured offset in microseconds.
// Negative values mean the RC frame arrived after the radio packet.
func (e *Engine) SyncOffset() int32 {
	return e.sync.offset
}

// SyncMargin returns the safety margin in 0.1us.
func (e *Engine) SyncMargin() int32 {
	return e.sync.margin
}

// JustSentRFPacket measures the time since the last RC frame. It must be
// called right after each radio packet was sent.
func (e *Engine) JustSentRFPacket() {
	now := e.now()
	_, last := e.Channels()
	s := &e.sync

	interval := int64(s.interval / time.Microsecond)
	offset := int64(now.Sub(last) / time.Microsecond)
	if interval > 0 && offset > interval {
		offset = -(offset % interval)
		s.offset = int32(offset)
		if s.autotune && now.After(s.settle.Add(SyncSettlePeriod)) {
			s.margin = s.marginLPF.update(s.margin - s.offset + syncHeadroom)
		}
	} else {
		s.offset = int32(offset)
	}

	if s.autotune {
		if s.margin > SyncMarginMax {
			s.margin = SyncMarginMax
		} else if s.margin < SyncMarginMin {
			s.margin = SyncMarginMin
		}
	}
}

func (e *Engine) sendSyncPacket() {
	now := e.now()
	s := &e.sync
	if !e.Connected() || now.Before(s.lastSent.Add(SyncPacketInterval)) {
		return
	}
	rate := uint32(s.interval/time.Microsecond) * 10
	offset := s.offset*10 - s.margin
	e.QueueExtended(crsf.FrameTypeRadioID, crsf.SyncPayload(rate, offset))
	s.lastSent = now
}
