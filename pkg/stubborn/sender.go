// Package stubborn delivers a payload in chunks over a lossy link where the
// peer acknowledges each chunk by toggling a confirm bit.
package stubborn

import (
	"errors"

	"github.com/golang/glog"
)

// MaxMissedPackets is the number of telemetry periods tolerated without
// a matching confirm bit.
const MaxMissedPackets = 20

// DefaultMaxWaitCount is the wait threshold until SetRate is called.
const DefaultMaxWaitCount = 80

var (
	// ErrTooLarge indicates the payload needs more chunks than the package
	// index can count.
	ErrTooLarge = errors.New("payload too large")
	// ErrChunkSize indicates a chunk size below 1.
	ErrChunkSize = errors.New("invalid chunk size")
)

// State is the state of a Sender.
type State int

// States.
const (
	Idle State = iota
	Sending
	Resync
	ResyncThenSend
	WaitUntilNextConfirm
)

var stateNames = map[State]string{
	Idle:                 "idle",
	Sending:              "sending",
	Resync:               "resync",
	ResyncThenSend:       "resync-then-send",
	WaitUntilNextConfirm: "wait-confirm",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Sender is the sending side. It is not safe for concurrent use.
type Sender struct {
	maxIndex byte

	data   []byte
	chunk  int
	offset int
	index  byte

	expect    bool
	waitCount int
	maxWait   int
	state     State
}

// New creates a Sender. Package index maxIndex is reserved for the resync
// marker, so a payload may have at most maxIndex-1 chunks.
func New(maxIndex byte) *Sender {
	s := &Sender{maxIndex: maxIndex}
	s.Reset()
	return s
}

// Reset drops any transfer.
func (s *Sender) Reset() {
	s.data = nil
	s.chunk = 1
	s.offset = 0
	s.index = 0
	s.expect = true
	s.waitCount = 0
	s.maxWait = DefaultMaxWaitCount
	s.state = Idle
}

// Submit starts the transfer of data in chunks of chunkSize bytes. A
// transfer in progress is abandoned. data must not be modified until the
// transfer completes.
func (s *Sender) Submit(data []byte, chunkSize int) error {
	if chunkSize < 1 {
		return ErrChunkSize
	}
	if len(data)/chunkSize >= int(s.maxIndex) {
		return ErrTooLarge
	}
	s.data = data
	s.chunk = chunkSize
	s.offset = 0
	s.index = 1
	s.waitCount = 0
	if s.state == Idle {
		s.state = Sending
	} else {
		glog.V(2).Infof("stubborn: abandon transfer in %s", s.state)
		s.state = ResyncThenSend
	}
	return nil
}

// Active tells whether the Sender is not idle.
func (s *Sender) Active() bool {
	return s.state != Idle
}

// State returns the current state.
func (s *Sender) State() State {
	return s.state
}

// MaxWaitCount returns the number of mismatching confirm bits tolerated.
func (s *Sender) MaxWaitCount() int {
	return s.maxWait
}

// CurrentPayload returns what to put in the next radio packet. While
// resyncing it is the reserved maximum index without data, and outside of
// a transfer index 0 without data.
func (s *Sender) CurrentPayload() (index byte, data []byte) {
	switch s.state {
	case Resync, ResyncThenSend:
		return s.maxIndex, nil
	case Sending:
		end := s.offset + s.chunk
		if end > len(s.data) {
			end = len(s.data)
		}
		return s.index, s.data[s.offset:end]
	}
	return 0, nil
}

// Confirm feeds the confirm bit received from the peer.
func (s *Sender) Confirm(bit bool) {
	next := s.state
	switch s.state {
	case Sending:
		if bit != s.expect {
			s.waitCount++
			if s.waitCount > s.maxWait {
				s.expect = !bit
				next = Resync
			}
			break
		}
		s.offset += s.chunk
		s.index++
		s.expect = !s.expect
		s.waitCount = 0
		if s.offset >= len(s.data) {
			next = WaitUntilNextConfirm
		}
	case Resync, ResyncThenSend, WaitUntilNextConfirm:
		if bit == s.expect {
			if s.state == ResyncThenSend {
				next = Sending
			} else {
				next = Idle
			}
			s.expect = !bit
		} else if s.state == WaitUntilNextConfirm {
			s.waitCount++
			if s.waitCount > s.maxWait {
				s.expect = !bit
				next = Resync
			}
		}
	}
	if next != s.state {
		glog.V(4).Infof("stubborn: %s -> %s", s.state, next)
	}
	s.state = next
}

// SetRate derives the wait threshold from the telemetry schedule: one
// telemetry packet every tlmRatio packets, tlmBurst packets per burst.
func (s *Sender) SetRate(tlmRatio, tlmBurst int) {
	if tlmBurst < 1 {
		tlmBurst = 1
	}
	s.maxWait = tlmRatio * (1 + tlmBurst) / tlmBurst * MaxMissedPackets
}
