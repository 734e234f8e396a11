package relay

import (
	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
	"github.com/robotalks/crsflink/pkg/stubborn"
)

// Loopback is a Peer reassembling messages locally, standing in for the
// receiver on the other end of the radio link.
type Loopback struct {
	// OnMessage receives each reassembled message.
	OnMessage func(msg []byte)

	recv *stubborn.Receiver
}

// NewLoopback creates a Loopback.
func NewLoopback() *Loopback {
	return &Loopback{recv: stubborn.NewReceiver(MaxPackageIndex, crsf.MspBufferLen)}
}

// Receive implements Peer.
func (l *Loopback) Receive(index byte, data []byte) {
	l.recv.Receive(index, data)
	if !l.recv.Finished() {
		return
	}
	msg := append([]byte(nil), l.recv.Data()...)
	l.recv.Unlock()
	if f := crsf.Frame(msg); f.IsExtended() {
		glog.V(1).Infof("relay: delivered frame %#x to %#x", f.Type(), f.Dest())
	}
	if fn := l.OnMessage; fn != nil {
		fn(msg)
	}
}

// ConfirmBit implements Peer.
func (l *Loopback) ConfirmBit() bool {
	return l.recv.ConfirmBit()
}
