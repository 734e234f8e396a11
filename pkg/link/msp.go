package link

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
	"github.com/robotalks/crsflink/pkg/fifo"
)

// mspQueue holds the MSP message being relayed over the air and the
// messages waiting behind it. pending holds length-prefixed entries only.
type mspQueue struct {
	lock    sync.Mutex
	data    [crsf.MspBufferLen]byte
	len     int
	pending *fifo.Buffer
}

// GetMspMessage returns a copy of the current MSP message, nil if none.
// The message stays current until UnlockMspMessage.
func (e *Engine) GetMspMessage() []byte {
	q := &e.msp
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.len == 0 {
		return nil
	}
	return append([]byte(nil), q.data[:q.len]...)
}

// UnlockMspMessage marks the current message sent and makes the next
// queued message current.
func (e *Engine) UnlockMspMessage() {
	q := &e.msp
	q.lock.Lock()
	defer q.lock.Unlock()
	if n := int(q.pending.Peek()); n > 0 {
		q.pending.Pop()
		if q.pending.PopBytes(q.data[:n]) {
			q.len = n
			return
		}
	}
	q.len = 0
}

// ResetMspQueue drops the current and all queued messages.
func (e *Engine) ResetMspQueue() {
	q := &e.msp
	q.lock.Lock()
	defer q.lock.Unlock()
	q.pending.Flush()
	q.len = 0
}

// AddMspMessage stores a complete frame for the MSP relay. It becomes the
// current message when none is pending, otherwise it is queued, evicting
// the oldest queued messages when needed.
func (e *Engine) AddMspMessage(frame []byte) bool {
	if len(frame) > crsf.MspBufferLen {
		glog.Warningf("crsf: msp message of %d bytes dropped", len(frame))
		return false
	}
	q := &e.msp
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.len == 0 {
		q.len = copy(q.data[:], frame)
		return true
	}
	if !q.pending.Ensure(len(frame) + 1) {
		return false
	}
	return q.pending.Push(byte(len(frame))) && q.pending.PushBytes(frame)
}

// AddMspPacket queues an MSP write of function with payload to the flight
// controller.
func (e *Engine) AddMspPacket(function byte, payload []byte) error {
	f, err := crsf.NewMspWriteFrame(function, payload)
	if err != nil {
		return err
	}
	e.AddMspMessage(f)
	return nil
}
