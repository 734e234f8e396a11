// Package txmenu registers the transmitter settings menu with the parameter
// protocol and maps handset writes to Config updates.
package txmenu

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
	"github.com/robotalks/crsflink/pkg/params"
)

// Link is what the menu needs from the frame engine. It is implemented by
// *link.Engine.
type Link interface {
	Connected() bool
	ModelID() byte
	Baud() int
	PacketCounts() (good, bad uint32)
	AddMspPacket(function byte, payload []byte) error
}

// Features select optional parts of the menu.
type Features struct {
	Backpack bool
	MinPower PowerLevel
	MaxPower PowerLevel
}

// DefaultFeatures enable every power level without backpack.
func DefaultFeatures() Features {
	return Features{MinPower: Power10mW, MaxPower: Power2000mW}
}

// Hooks are called for actions the menu does not perform itself. All are
// optional.
type Hooks struct {
	Bind            func()
	VtxSend         func()
	RxWiFi          func()
	TxBackpackWiFi  func()
	VRxBackpackWiFi func()
	// RateChanged receives the new RC packet interval.
	RateChanged func(Rate)
	// TelemetryRatioChanged receives one telemetry packet every n packets,
	// 0 for none.
	TelemetryRatioChanged func(n int)
	// ModelMatched tells whether the receiver accepted the model id.
	ModelMatched func() bool
}

// Option texts.
const (
	tlmOptions      = "Off;1:128;1:64;1:32;1:16;1:8;1:4;1:2"
	dynamicOptions  = "Off;On;AUX9;AUX10;AUX11;AUX12"
	switchOptions   = "Hybrid;Wide"
	offOnOptions    = "Off;On"
	vtxBandOptions  = "Off;A;B;E;F;R;L"
	vtxChanOptions  = "1;2;3;4;5;6;7;8"
	vtxPowerOptions = "-;1;2;3;4;5;6;7;8"
	dvrAuxOptions   = "Off;AUX1;!AUX1;AUX2;!AUX2;AUX3;!AUX3;AUX4;!AUX4;AUX5;!AUX5;AUX6;!AUX6;AUX7;!AUX7;AUX8;!AUX8;AUX9;!AUX9;AUX10;!AUX10"
	dvrDelayOptions = "0s;5s;15s;30s;45s;1min;2min"
)

// lowBaud limits the packet rate to slowRateInterval.
const (
	lowBaud          = 115200
	slowRateInterval = 4000 * time.Microsecond
)

// Menu is the standard transmitter menu.
type Menu struct {
	Protocol *params.Protocol
	Config   Config
	Link     Link
	Features Features
	Hooks    Hooks
	Version  string
	Commit   string

	rate       params.Selection
	tlm        params.Selection
	switchMode params.Selection
	modelMatch params.Selection

	powerFolder params.Folder
	power       params.Selection
	dynamic     params.Selection

	vtxFolder  params.Folder
	vtxBand    params.Selection
	vtxChannel params.Selection
	vtxPower   params.Selection
	vtxPit     params.Selection
	vtxSend    params.Command

	wifiFolder  params.Folder
	rxWiFi      params.Command
	txBackpack  params.Command
	vrxBackpack params.Command

	backpackFolder params.Folder
	dvrAux         params.Selection
	dvrStartDelay  params.Selection
	dvrStopDelay   params.Selection

	bind    params.Command
	badGood params.Info
	version params.Info
}

// New creates a Menu.
func New(p *params.Protocol, cfg Config, link Link, features Features) *Menu {
	return &Menu{Protocol: p, Config: cfg, Link: link, Features: features}
}

// RateOptions lists the rates from the slowest, as shown in the menu.
func RateOptions() string {
	opts := make([]string, len(Rates))
	for i, r := range Rates {
		opts[len(Rates)-1-i] = fmt.Sprintf("%d(%ddbm)", r.Hz, r.Sensitivity)
	}
	return strings.Join(opts, ";")
}

// PowerOptions lists the power levels from min to max.
func PowerOptions(min, max PowerLevel) string {
	if max >= PowerLevel(len(PowerLevels)) {
		max = PowerLevel(len(PowerLevels) - 1)
	}
	if min > max {
		min = max
	}
	return strings.Join(PowerLevels[min:max+1], ";")
}

// Register registers all items, completes the registry and installs
// Populate.
func (m *Menu) Register() error {
	m.rate = params.Selection{Field: params.Field{Name: "Packet Rate"}, Options: RateOptions(), Units: "Hz"}
	m.tlm = params.Selection{Field: params.Field{Name: "Telem Ratio"}, Options: tlmOptions}
	m.switchMode = params.Selection{Field: params.Field{Name: "Switch Mode"}, Options: switchOptions}
	m.modelMatch = params.Selection{Field: params.Field{Name: "Model Match"}, Options: offOnOptions}
	m.powerFolder = params.Folder{Field: params.Field{Name: "TX Power"}}
	m.power = params.Selection{
		Field:   params.Field{Name: "Max Power"},
		Options: PowerOptions(m.Features.MinPower, m.Features.MaxPower),
		Units:   "mW",
	}
	m.dynamic = params.Selection{Field: params.Field{Name: "Dynamic"}, Options: dynamicOptions}
	m.vtxFolder = params.Folder{Field: params.Field{Name: "VTX Administrator"}}
	m.vtxBand = params.Selection{Field: params.Field{Name: "Band"}, Options: vtxBandOptions}
	m.vtxChannel = params.Selection{Field: params.Field{Name: "Channel"}, Options: vtxChanOptions}
	m.vtxPower = params.Selection{Field: params.Field{Name: "Pwr Lvl"}, Options: vtxPowerOptions}
	m.vtxPit = params.Selection{Field: params.Field{Name: "Pitmode"}, Options: offOnOptions}
	m.vtxSend = params.Command{Field: params.Field{Name: "Send VTx"}}
	m.wifiFolder = params.Folder{Field: params.Field{Name: "WiFi Connectivity"}}
	m.rxWiFi = params.Command{Field: params.Field{Name: "Enable Rx WiFi"}}
	m.txBackpack = params.Command{Field: params.Field{Name: "Enable Backpack WiFi"}}
	m.vrxBackpack = params.Command{Field: params.Field{Name: "Enable VRx WiFi"}}
	m.backpackFolder = params.Folder{Field: params.Field{Name: "Backpack"}}
	m.dvrAux = params.Selection{Field: params.Field{Name: "DVR AUX"}, Options: dvrAuxOptions}
	m.dvrStartDelay = params.Selection{Field: params.Field{Name: "DVR Srt Dly"}, Options: dvrDelayOptions}
	m.dvrStopDelay = params.Selection{Field: params.Field{Name: "DVR Stp Dly"}, Options: dvrDelayOptions}
	m.bind = params.Command{Field: params.Field{Name: "Bind"}}
	m.badGood = params.Info{Field: params.Field{Name: "Bad/Good", ElrsHidden: true}}
	m.version = params.Info{Field: params.Field{Name: m.Version}, Value: m.Commit}

	r := &registrar{p: m.Protocol}
	r.add(&m.rate, m.setRate, 0)
	r.add(&m.tlm, m.setTlmRatio, 0)
	r.add(&m.switchMode, m.setSwitchMode, 0)
	r.add(&m.modelMatch, m.setModelMatch, 0)

	power := r.add(&m.powerFolder, nil, 0)
	r.add(&m.power, m.setPower, power)
	r.add(&m.dynamic, m.setDynamicPower, power)

	vtx := r.add(&m.vtxFolder, nil, 0)
	r.add(&m.vtxBand, m.update(func(s *Settings, arg byte) { s.VtxBand = arg }), vtx)
	r.add(&m.vtxChannel, m.update(func(s *Settings, arg byte) { s.VtxChannel = arg }), vtx)
	r.add(&m.vtxPower, m.update(func(s *Settings, arg byte) { s.VtxPower = arg }), vtx)
	r.add(&m.vtxPit, m.update(func(s *Settings, arg byte) { s.VtxPitmode = arg }), vtx)
	r.add(&m.vtxSend, m.command(&m.vtxSend, "Sending...", func() func() { return m.Hooks.VtxSend }), vtx)

	wifi := r.add(&m.wifiFolder, nil, 0)
	r.add(&m.rxWiFi, m.command(&m.rxWiFi, "Sending...", func() func() { return m.Hooks.RxWiFi }), wifi)
	if m.Features.Backpack {
		r.add(&m.txBackpack, m.command(&m.txBackpack, "Sending...", func() func() { return m.Hooks.TxBackpackWiFi }), wifi)
		r.add(&m.vrxBackpack, m.command(&m.vrxBackpack, "Sending...", func() func() { return m.Hooks.VRxBackpackWiFi }), wifi)

		backpack := r.add(&m.backpackFolder, nil, 0)
		r.add(&m.dvrAux, m.update(func(s *Settings, arg byte) { s.DvrAux = arg }), backpack)
		r.add(&m.dvrStartDelay, m.update(func(s *Settings, arg byte) { s.DvrStartDelay = arg }), backpack)
		r.add(&m.dvrStopDelay, m.update(func(s *Settings, arg byte) { s.DvrStopDelay = arg }), backpack)
	}

	r.add(&m.bind, m.command(&m.bind, "Binding...", func() func() { return m.Hooks.Bind }), 0)
	r.add(&m.badGood, nil, 0)
	r.add(&m.version, nil, 0)
	if r.err != nil {
		return r.err
	}
	m.Protocol.Complete()
	m.Protocol.Populate = m.Populate
	return nil
}

type registrar struct {
	p   *params.Protocol
	err error
}

func (r *registrar) add(item params.Item, cb params.Callback, parent byte) byte {
	if r.err != nil {
		return 0
	}
	id, err := r.p.Register(item, cb, parent)
	if err != nil {
		r.err = fmt.Errorf("register %q: %w", item.Common().Name, err)
	}
	return id
}

// Populate refreshes all values and warnings from Config and Link.
func (m *Menu) Populate() {
	s := m.Config.Settings()
	connected := m.Link.Connected()
	matched := m.Hooks.ModelMatched == nil || m.Hooks.ModelMatched()
	m.Protocol.SetWarningFlag(params.WarningModelMismatch, connected && !matched)
	m.Protocol.SetWarningFlag(params.WarningConnected, connected)

	rate := m.adjustRateForBaud(int(s.Rate))
	m.rate.Value = byte(len(Rates) - 1 - rate)
	m.tlm.Value = s.TlmRatio
	m.switchMode.Value = 0
	if s.SwitchMode > 0 {
		m.switchMode.Value = s.SwitchMode - 1
	}
	m.modelMatch.Value = boolByte(s.ModelMatch)
	m.power.Value = byte(s.Power - m.Features.MinPower)
	if s.DynamicPower {
		m.dynamic.Value = s.BoostChannel + 1
	} else {
		m.dynamic.Value = 0
	}
	m.vtxBand.Value = s.VtxBand
	m.vtxChannel.Value = s.VtxChannel
	m.vtxPower.Value = s.VtxPower
	m.vtxPit.Value = s.VtxPitmode
	m.dvrAux.Value = s.DvrAux
	m.dvrStartDelay.Value = s.DvrStartDelay
	m.dvrStopDelay.Value = s.DvrStopDelay

	good, bad := m.Link.PacketCounts()
	m.badGood.Value = fmt.Sprintf("%d/%d", bad, good)
}

// adjustRateForBaud slows rates too fast for a low baud rate.
func (m *Menu) adjustRateForBaud(rate int) int {
	if rate < 0 || rate >= len(Rates) {
		return len(Rates) - 1
	}
	if m.Link.Baud() > lowBaud || Rates[rate].Interval >= slowRateInterval {
		return rate
	}
	for i := rate; i < len(Rates); i++ {
		if Rates[i].Interval >= slowRateInterval {
			return i
		}
	}
	return rate
}

func (m *Menu) update(fn func(*Settings, byte)) params.Callback {
	return func(id, arg byte) {
		m.Config.Update(func(s *Settings) { fn(s, arg) })
	}
}

// command answers a command write: steps below Cancel run the action,
// others reset the command.
func (m *Menu) command(cmd *params.Command, running string, action func() func()) params.Callback {
	return func(id, arg byte) {
		if arg < byte(params.StepCancel) {
			if fn := action(); fn != nil {
				fn()
			}
			m.Protocol.SendCommandResponse(cmd, params.StepExecuting, running)
			return
		}
		m.Protocol.SendCommandResponse(cmd, params.StepIdle, "")
	}
}

func (m *Menu) setRate(id, arg byte) {
	if int(arg) >= len(Rates) {
		return
	}
	rate := m.adjustRateForBaud(len(Rates) - 1 - int(arg))
	m.Config.Update(func(s *Settings) { s.Rate = byte(rate) })
	glog.Infof("txmenu: packet rate %dHz", Rates[rate].Hz)
	if fn := m.Hooks.RateChanged; fn != nil {
		fn(Rates[rate])
	}
}

func (m *Menu) setTlmRatio(id, arg byte) {
	if int(arg) >= len(TlmRatios) {
		return
	}
	m.Config.Update(func(s *Settings) { s.TlmRatio = arg })
	if fn := m.Hooks.TelemetryRatioChanged; fn != nil {
		fn(TlmRatios[arg])
	}
}

// setSwitchMode only applies while disconnected since both ends must use
// the same channel packing.
func (m *Menu) setSwitchMode(id, arg byte) {
	if m.Link.Connected() {
		glog.V(1).Info("txmenu: switch mode unchanged while connected")
		return
	}
	m.Config.Update(func(s *Settings) { s.SwitchMode = (arg + 1) & 0x03 })
}

func (m *Menu) setModelMatch(id, arg byte) {
	match := arg != 0
	m.Config.Update(func(s *Settings) { s.ModelMatch = match })
	if !m.Link.Connected() {
		return
	}
	modelID := byte(0xFF)
	if match {
		modelID = m.Link.ModelID()
	}
	if err := m.Link.AddMspPacket(crsf.MspSetRxConfig, []byte{crsf.MspElrsModelID, modelID}); err != nil {
		glog.Errorf("txmenu: model match: %v", err)
	}
}

func (m *Menu) setPower(id, arg byte) {
	p := PowerLevel(arg) + m.Features.MinPower
	if p < m.Features.MinPower {
		p = m.Features.MinPower
	}
	if p > m.Features.MaxPower {
		p = m.Features.MaxPower
	}
	m.Config.Update(func(s *Settings) { s.Power = p })
}

func (m *Menu) setDynamicPower(id, arg byte) {
	m.Config.Update(func(s *Settings) {
		s.DynamicPower = arg > 0
		s.BoostChannel = 0
		if arg > 1 {
			s.BoostChannel = arg - 1
		}
	})
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
