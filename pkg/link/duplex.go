package link

import (
	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/transport"
)

// setTX turns a half-duplex line around for transmitting.
func (e *Engine) setTX() {
	if hd, ok := e.Port.(transport.HalfDuplex); ok {
		if err := hd.EnableTX(); err != nil {
			glog.Errorf("crsf: duplex tx: %v", err)
		}
	}
}

// setRX returns a half-duplex line to receiving.
func (e *Engine) setRX() {
	if hd, ok := e.Port.(transport.HalfDuplex); ok {
		if err := hd.EnableRX(); err != nil {
			glog.Errorf("crsf: duplex rx: %v", err)
		}
	}
}
