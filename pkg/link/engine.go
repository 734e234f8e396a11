package link

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
	"github.com/robotalks/crsflink/pkg/fifo"
	fx "github.com/robotalks/crsflink/pkg/framework"
	"github.com/robotalks/crsflink/pkg/transport"
)

// Timings.
const (
	// DefaultPacketInterval is the RC packet interval until SetSyncParams.
	DefaultPacketInterval = 5000 * time.Microsecond
	// WatchdogInterval is the period of the link watchdog.
	WatchdogInterval = time.Second
	// StopTimeout bounds the output drain in Stop.
	StopTimeout = time.Second
)

// HandsetTelemetryFIFOSize caps the bytes sent to the handset per period.
const HandsetTelemetryFIFOSize = 128

// DefaultDeviceName is reported in device info frames.
const DefaultDeviceName = "CRSF Link"

// DefaultBaudRates are tried in order by the watchdog.
var DefaultBaudRates = []int{400000, 115200, 5250000, 3750000, 1870000, 921600}

// Engine speaks CRSF with the handset on one transport.
//
// HandleInput, HandleOutput, Stop, the watchdog and sync methods and their
// getters (Baud, MaxPacketBytes, MaxPeriodBytes, PacketInterval,
// SyncOffset, SyncMargin) must be called from a single goroutine, normally
// the framework.Loop running the Engine as a device; other goroutines use
// Loop.Invoke. The queueing methods (SendLinkStatistics, QueueExtended,
// SendTelemetry, SendDeviceInfo), the MSP queue and the link state getters
// (Connected, Channels, ModelID, LuaMode, LinkStatistics, PacketCounts) and
// SetLinkStatistics are safe for concurrent use; each queued frame is pushed
// atomically.
type Engine struct {
	Port transport.Port
	// Mirror receives a copy of every byte written to Port.
	Mirror io.Writer
	Time   fx.TimeSource

	BaudRates  []int
	DeviceName string
	// ForwardDevicePings relays device pings to the MSP queue.
	ForwardDevicePings bool
	// Autotune adapts the sync margin to the observed offsets.
	Autotune bool

	OnConnected       func()
	OnDisconnected    func()
	OnModelUpdate     func(id byte)
	OnParameterUpdate func(crsf.ParameterUpdate)
	OnRCData          func(crsf.ChannelData)
	OnWatchdog        func(WatchdogReport)

	parser crsf.Parser

	fifoLock     sync.Mutex
	output       *fifo.Buffer
	outBuf       [fifo.DefaultCapacity]byte
	outRemaining int
	outOffset    int

	goodPkts   uint32
	badPkts    uint32
	goodResult uint32
	badResult  uint32

	stateLock  sync.RWMutex
	connected  bool
	channels   crsf.ChannelData
	rcLastRecv time.Time
	linkStats  crsf.LinkStatistics
	modelID    byte
	luaMode    bool

	wd   watchdogState
	sync syncState
	msp  mspQueue
}

// NewEngine creates an Engine on port.
func NewEngine(port transport.Port) *Engine {
	e := &Engine{
		Port:       port,
		Time:       fx.SystemTime,
		BaudRates:  DefaultBaudRates,
		DeviceName: DefaultDeviceName,
		output:     fifo.New(fifo.DefaultCapacity),
	}
	e.parser.Address = crsf.AddrCRSFTransmitter
	e.sync = newSyncState(DefaultPacketInterval)
	e.msp.pending = fifo.New(fifo.DefaultCapacity)
	e.adjustMaxPacketSize()
	return e
}

func (e *Engine) now() time.Time {
	return e.Time.Time()
}

// Begin applies the first baud rate and arms the watchdog one interval late.
func (e *Engine) Begin() error {
	now := e.now()
	e.wd.lastChecked = now.Add(WatchdogInterval)
	e.sync.begin(e.Autotune, now)
	e.adjustMaxPacketSize()
	e.parser.Reset()
	if err := e.Port.SetBaudRate(e.Baud()); err != nil {
		return err
	}
	e.setRX()
	e.Port.FlushInput()
	glog.Infof("crsf: listening at %d baud", e.Baud())
	return nil
}

// Stop drains queued output for at most StopTimeout and resets the link.
// It implements framework.Stopper, so the Loop calls it before closing the
// port.
func (e *Engine) Stop() {
	deadline := e.now().Add(StopTimeout)
	for e.outputPending() {
		e.HandleOutput()
		if e.now().After(deadline) {
			glog.Warning("crsf: output not drained on stop")
			break
		}
	}
	e.fifoLock.Lock()
	e.output.Flush()
	e.outRemaining, e.outOffset = 0, 0
	e.fifoLock.Unlock()
	e.parser.Reset()
	e.stateLock.Lock()
	e.connected = false
	e.stateLock.Unlock()
	glog.Info("crsf: stopped")
}

// Start implements framework.Starter.
func (e *Engine) Start(cc fx.ControlContext) time.Duration {
	if err := e.Begin(); err != nil {
		glog.Errorf("crsf: begin: %v", err)
	}
	return fx.DurationImmediately
}

// Timeout implements framework.Device. It processes input, checks the
// watchdog and drains output once per RC packet interval.
func (e *Engine) Timeout(cc fx.ControlContext) time.Duration {
	e.HandleInput()
	e.HandleOutput()
	return e.PacketInterval()
}

// HandleInput runs the watchdog and parses all buffered input.
// Nothing is parsed in a call where the watchdog switched the baud rate.
func (e *Engine) HandleInput() {
	if e.checkWatchdog() {
		return
	}
	for e.Port.Available() > 0 {
		b, err := e.Port.ReadByte()
		if err != nil {
			glog.Errorf("crsf: read: %v", err)
			return
		}
		pr := e.parser.Parse(b)
		switch pr.Status {
		case crsf.ParseFrame:
			atomic.AddUint32(&e.goodPkts, 1)
			if e.processFrame(pr.Frame) {
				e.HandleOutput()
			}
		case crsf.ParseBadCRC:
			glog.V(2).Info("crsf: crc failure")
			e.Port.FlushInput()
			atomic.AddUint32(&e.badPkts, 1)
			return
		case crsf.ParseAbort:
			glog.V(4).Info("crsf: frame aborted")
		}
	}
}

func (e *Engine) processFrame(f crsf.Frame) bool {
	now := e.now()
	e.stateLock.Lock()
	first := !e.connected
	e.connected = true
	e.stateLock.Unlock()
	if first {
		glog.Info("crsf: handset connected")
		e.sync.connected(now)
		if cb := e.OnConnected; cb != nil {
			cb()
		}
	}

	received := false
	frameType := f.Type()
	if frameType == crsf.FrameTypeRCChannelsPacked {
		if len(f.Payload()) < crsf.RCChannelsLen {
			return false
		}
		ch := crsf.UnpackChannels(f.Payload())
		e.stateLock.Lock()
		e.channels, e.rcLastRecv = ch, now
		e.stateLock.Unlock()
		if cb := e.OnRCData; cb != nil {
			cb(ch)
		}
		return true
	}
	if !f.IsExtended() {
		return false
	}

	switch f.Dest() {
	case crsf.AddrFlightController, crsf.AddrBroadcast, crsf.AddrCRSFReceiver:
		if e.ForwardDevicePings || frameType != crsf.FrameTypeDevicePing {
			e.AddMspMessage(f)
		}
		received = true
	}

	dest, orig := f.Dest(), f.Origin()
	if (dest == crsf.AddrCRSFTransmitter || dest == crsf.AddrBroadcast) &&
		(orig == crsf.AddrRadioTransmitter || orig == crsf.AddrElrsLua) {
		var args [3]byte
		copy(args[:], f.Payload())
		e.stateLock.Lock()
		e.luaMode = orig == crsf.AddrElrsLua
		isModelSelect := frameType == crsf.FrameTypeCommand &&
			args[0] == crsf.SubcommandCRSF && args[1] == crsf.CommandModelSelectID
		if isModelSelect {
			e.modelID = args[2]
		}
		e.stateLock.Unlock()
		if isModelSelect {
			glog.V(2).Infof("crsf: model %d selected", args[2])
			if cb := e.OnModelUpdate; cb != nil {
				cb(args[2])
			}
		} else if cb := e.OnParameterUpdate; cb != nil {
			cb(crsf.ParameterUpdate{Type: frameType, FieldID: args[0], Arg: args[1]})
		}
		received = true
	}
	return received
}

// Connected tells whether a valid frame arrived since the last disconnect.
func (e *Engine) Connected() bool {
	e.stateLock.RLock()
	defer e.stateLock.RUnlock()
	return e.connected
}

// Channels returns the latest channel values and when they arrived.
func (e *Engine) Channels() (crsf.ChannelData, time.Time) {
	e.stateLock.RLock()
	defer e.stateLock.RUnlock()
	return e.channels, e.rcLastRecv
}

// ModelID returns the model selected by the handset.
func (e *Engine) ModelID() byte {
	e.stateLock.RLock()
	defer e.stateLock.RUnlock()
	return e.modelID
}

// LuaMode tells whether the latest request came from the ELRS Lua agent.
func (e *Engine) LuaMode() bool {
	e.stateLock.RLock()
	defer e.stateLock.RUnlock()
	return e.luaMode
}

// SetLinkStatistics stores the statistics sent by SendLinkStatistics.
func (e *Engine) SetLinkStatistics(s crsf.LinkStatistics) {
	e.stateLock.Lock()
	e.linkStats = s
	e.stateLock.Unlock()
}

// LinkStatistics returns the stored statistics.
func (e *Engine) LinkStatistics() crsf.LinkStatistics {
	e.stateLock.RLock()
	defer e.stateLock.RUnlock()
	return e.linkStats
}

// PacketCounts returns the good and bad frame counts of the last
// completed watchdog interval.
func (e *Engine) PacketCounts() (good, bad uint32) {
	return atomic.LoadUint32(&e.goodResult), atomic.LoadUint32(&e.badResult)
}
