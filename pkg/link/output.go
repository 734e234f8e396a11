package link

import (
	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
)

// queueFrame pushes one length-prefixed entry, evicting the oldest entries
// when needed. Frames are dropped while disconnected.
func (e *Engine) queueFrame(frame []byte) bool {
	if !e.Connected() {
		return false
	}
	e.fifoLock.Lock()
	defer e.fifoLock.Unlock()
	if !e.output.Ensure(len(frame) + 1) {
		return false
	}
	return e.output.Push(byte(len(frame))) && e.output.PushBytes(frame)
}

// SendLinkStatistics queues the stored link statistics.
func (e *Engine) SendLinkStatistics() bool {
	stats := e.LinkStatistics()
	return e.queueFrame(crsf.NewFrame(crsf.AddrRadioTransmitter, crsf.FrameTypeLinkStatistics, stats[:]))
}

// QueueExtended queues an extended frame from the transmitter to the radio.
func (e *Engine) QueueExtended(frameType byte, payload []byte) bool {
	return e.queueFrame(crsf.NewExtendedFrame(crsf.AddrRadioTransmitter, frameType,
		crsf.AddrRadioTransmitter, crsf.AddrCRSFTransmitter, payload))
}

// SendTelemetry queues a complete telemetry frame received over the air.
// Its address byte is replaced by the radio transmitter address.
func (e *Engine) SendTelemetry(frame []byte) error {
	if len(frame) < 2 {
		return &crsf.FrameSizeError{Len: len(frame)}
	}
	l := int(frame[1])
	if l > crsf.MaxPayloadLen || len(frame) < l+2 {
		glog.Warningf("crsf: telemetry frame length %d dropped", l)
		return &crsf.FrameSizeError{Len: l}
	}
	out := make([]byte, l+2)
	copy(out, frame)
	out[0] = crsf.AddrRadioTransmitter
	e.queueFrame(out)
	return nil
}

// SendDeviceInfo queues the device info frame answering a ping.
func (e *Engine) SendDeviceInfo(fieldCount byte) bool {
	return e.QueueExtended(crsf.FrameTypeDeviceInfo, crsf.DeviceInfoPayload(e.DeviceName, fieldCount))
}

func (e *Engine) outputPending() bool {
	e.fifoLock.Lock()
	defer e.fifoLock.Unlock()
	return e.outRemaining > 0 || e.output.Size() > 0
}

// HandleOutput emits a due sync frame, then writes queued frames within
// the per-period byte budget. A frame larger than the budget is split, but
// only when it is the first write of the period.
func (e *Engine) HandleOutput() {
	if e.sync.active {
		e.sendSyncPacket()
	}
	if !e.outputPending() {
		return
	}

	e.setTX()
	periodRemaining := e.wd.maxPeriodBytes
	for periodRemaining > 0 {
		e.fifoLock.Lock()
		if e.outRemaining == 0 {
			n := int(e.output.Pop())
			if n > 0 && e.output.PopBytes(e.outBuf[:n]) {
				e.outRemaining = n
			}
			e.outOffset = 0
		}
		e.fifoLock.Unlock()

		n := e.outRemaining
		if n > periodRemaining {
			if periodRemaining < e.wd.maxPeriodBytes {
				break
			}
			n = periodRemaining
		}
		if n > 0 {
			e.write(e.outBuf[e.outOffset : e.outOffset+n])
		}
		e.outOffset += n
		e.outRemaining -= n
		periodRemaining -= n

		e.fifoLock.Lock()
		empty := e.output.Size() == 0
		e.fifoLock.Unlock()
		if empty {
			break
		}
	}
	if err := e.Port.Flush(); err != nil {
		glog.Errorf("crsf: flush: %v", err)
	}
	e.setRX()
}

func (e *Engine) write(p []byte) {
	if _, err := e.Port.Write(p); err != nil {
		glog.Errorf("crsf: write: %v", err)
	}
	if e.Mirror != nil {
		if _, err := e.Mirror.Write(p); err != nil {
			glog.V(2).Infof("crsf: mirror write: %v", err)
		}
	}
}
