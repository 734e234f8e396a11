package link

import (
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
)

// WatchdogReport summarizes one watchdog interval.
type WatchdogReport struct {
	Time      time.Time
	Baud      int
	Good      uint32
	Bad       uint32
	Rotated   bool
	Connected bool
}

type watchdogState struct {
	baudIdx        int
	lastChecked    time.Time
	maxPacketBytes int
	maxPeriodBytes int
}

// Baud returns the current baud rate.
func (e *Engine) Baud() int {
	return e.BaudRates[e.wd.baudIdx%len(e.BaudRates)]
}

// MaxPacketBytes returns the largest frame which may be queued.
func (e *Engine) MaxPacketBytes() int {
	return e.wd.maxPacketBytes
}

// MaxPeriodBytes returns the bytes written per RC packet period.
func (e *Engine) MaxPeriodBytes() int {
	return e.wd.maxPeriodBytes
}

// adjustMaxPacketSize derives the byte budgets from the baud rate and the
// RC packet interval: 10 bits per byte, half of each period for sending,
// 80% of that.
func (e *Engine) adjustMaxPacketSize() {
	intervalUs := int(e.sync.interval / time.Microsecond)
	if intervalUs <= 0 {
		intervalUs = int(DefaultPacketInterval / time.Microsecond)
	}
	rate := 1000000 / intervalUs
	if rate < 1 {
		rate = 1
	}
	period := e.Baud() / 10 / 2 / rate * 80 / 100
	if period > HandsetTelemetryFIFOSize {
		period = HandsetTelemetryFIFOSize
	}
	if period < 10 {
		period = 10
	}
	e.wd.maxPeriodBytes = period
	e.wd.maxPacketBytes = period
	if e.wd.maxPacketBytes > crsf.MaxPacketLen {
		e.wd.maxPacketBytes = crsf.MaxPacketLen
	}
	glog.V(2).Infof("crsf: max packet %d, period %d bytes", e.wd.maxPacketBytes, e.wd.maxPeriodBytes)
}

// checkWatchdog evaluates the frame counts once per WatchdogInterval and
// switches to the next baud rate when bad frames are not outnumbered by
// good ones. It returns true when the baud rate was switched.
func (e *Engine) checkWatchdog() bool {
	now := e.now()
	if now.Before(e.wd.lastChecked.Add(WatchdogInterval)) {
		return false
	}
	good := atomic.SwapUint32(&e.goodPkts, 0)
	bad := atomic.SwapUint32(&e.badPkts, 0)
	rotated := bad >= good
	if rotated {
		e.disconnect(now)
		e.wd.baudIdx = (e.wd.baudIdx + 1) % len(e.BaudRates)
		e.adjustMaxPacketSize()

		e.fifoLock.Lock()
		e.output.Flush()
		e.outRemaining, e.outOffset = 0, 0
		e.fifoLock.Unlock()

		if err := e.Port.Flush(); err != nil {
			glog.Errorf("crsf: flush: %v", err)
		}
		if err := e.Port.SetBaudRate(e.Baud()); err != nil {
			glog.Errorf("crsf: set baud %d: %v", e.Baud(), err)
		}
		e.setRX()
		e.Port.FlushInput()
		e.parser.Reset()
		glog.V(1).Infof("crsf: switched to %d baud", e.Baud())
	}
	glog.V(2).Infof("crsf: bad:good = %d:%d", bad, good)

	e.wd.lastChecked = now
	if rotated {
		e.wd.lastChecked = now.Add(-3 * (WatchdogInterval / 4))
	}
	atomic.StoreUint32(&e.goodResult, good)
	atomic.StoreUint32(&e.badResult, bad)

	if cb := e.OnWatchdog; cb != nil {
		cb(WatchdogReport{
			Time:      now,
			Baud:      e.Baud(),
			Good:      good,
			Bad:       bad,
			Rotated:   rotated,
			Connected: e.Connected(),
		})
	}
	return rotated
}

func (e *Engine) disconnect(now time.Time) {
	e.stateLock.Lock()
	was := e.connected
	e.connected = false
	e.stateLock.Unlock()
	if !was {
		return
	}
	glog.Info("crsf: handset disconnected")
	if e.Autotune {
		e.sync.disconnected(now)
	}
	if cb := e.OnDisconnected; cb != nil {
		cb()
	}
}
