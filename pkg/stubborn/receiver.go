package stubborn

import "github.com/golang/glog"

// Receiver reassembles a payload sent by a Sender and produces the confirm
// bit carried back to it. It is not safe for concurrent use.
type Receiver struct {
	maxIndex byte
	buf      []byte
	size     int

	index    byte
	confirm  bool
	finished bool
}

// NewReceiver creates a Receiver holding payloads up to capacity bytes.
func NewReceiver(maxIndex byte, capacity int) *Receiver {
	return &Receiver{maxIndex: maxIndex, buf: make([]byte, capacity), index: 1}
}

// Receive handles the package index and data of one radio packet.
// Index 0 after at least one chunk ends the transfer.
func (r *Receiver) Receive(index byte, data []byte) {
	if index == r.maxIndex {
		r.confirm = !r.confirm
		r.reset()
		return
	}
	if r.finished {
		return
	}
	switch {
	case index == 0 && r.index > 1:
		r.finished = true
	case index == r.index:
		if r.size+len(data) > len(r.buf) {
			glog.Warningf("stubborn: receive overflow at %d bytes", r.size)
			r.reset()
			return
		}
		r.size += copy(r.buf[r.size:], data)
		r.index++
	default:
		return
	}
	r.confirm = !r.confirm
}

// ConfirmBit returns the bit to send back.
func (r *Receiver) ConfirmBit() bool {
	return r.confirm
}

// Finished tells whether a complete payload is available.
func (r *Receiver) Finished() bool {
	return r.finished
}

// Data returns the payload received so far.
func (r *Receiver) Data() []byte {
	return r.buf[:r.size]
}

// Unlock releases a finished payload and accepts the next one.
func (r *Receiver) Unlock() {
	r.reset()
}

func (r *Receiver) reset() {
	r.index = 1
	r.size = 0
	r.finished = false
}
