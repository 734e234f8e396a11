// Package bridge assembles the frame engine, the parameter menu, the MSP
// relay and the optional telemetry and history into one loop.
package bridge

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/env"
	fx "github.com/robotalks/crsflink/pkg/framework"
	"github.com/robotalks/crsflink/pkg/link"
	"github.com/robotalks/crsflink/pkg/params"
	"github.com/robotalks/crsflink/pkg/relay"
	"github.com/robotalks/crsflink/pkg/statlog"
	"github.com/robotalks/crsflink/pkg/telemetry"
	"github.com/robotalks/crsflink/pkg/transport"
	"github.com/robotalks/crsflink/pkg/transport/serialport"
	"github.com/robotalks/crsflink/pkg/transport/wsport"
	"github.com/robotalks/crsflink/pkg/txmenu"
)

// Version is reported in the menu.
var (
	Version = "crsflink 0.1"
	Commit  = "dev"
)

// Bridge holds all components of a link.
type Bridge struct {
	Loop      *fx.Loop
	Port      transport.Port
	Engine    *link.Engine
	Params    *params.Protocol
	Menu      *txmenu.Menu
	Settings  *txmenu.MemoryConfig
	Relay     *relay.Relay
	Loopback  *relay.Loopback
	Stats     *statlog.Recorder
	Publisher *telemetry.Publisher

	queue   *telemetry.Queue
	closers []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

// OpenPort opens the websocket when configured, the serial device
// otherwise.
func OpenPort(conf *env.Config) (transport.Port, error) {
	if conf.WebsocketURL != "" {
		p, err := wsport.Dial(conf.WebsocketURL, conf.Origin)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", conf.WebsocketURL, err)
		}
		return p, nil
	}
	baud := link.DefaultBaudRates[0]
	if len(conf.BaudRates) > 0 {
		baud = conf.BaudRates[0]
	}
	p, err := serialport.Open(serialport.Config{
		Device:     conf.Device,
		Baud:       baud,
		HalfDuplex: conf.HalfDuplex,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// New opens the port and assembles the Bridge.
func New(conf *env.Config) (*Bridge, error) {
	port, err := OpenPort(conf)
	if err != nil {
		return nil, err
	}
	b, err := Assemble(port, conf)
	if err != nil {
		if c, ok := port.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}
	return b, nil
}

// Assemble builds the Bridge on port. MQTT and the history database are
// only set up when configured.
func Assemble(port transport.Port, conf *env.Config) (*Bridge, error) {
	features, err := conf.Features()
	if err != nil {
		return nil, err
	}

	b := &Bridge{Loop: fx.NewLoop(), Port: port}

	e := link.NewEngine(port)
	if len(conf.BaudRates) > 0 {
		e.BaudRates = conf.BaudRates
	}
	e.Autotune = conf.Autotune
	e.ForwardDevicePings = conf.ForwardPings
	e.OnConnected = b.Loop.TriggerEvent
	e.OnDisconnected = b.Loop.TriggerEvent
	b.Engine = e
	b.Loop.AddDevice(e)
	if n, ok := port.(transport.Notifier); ok {
		n.SetOnData(func() { b.Loop.Schedule(e, fx.DurationImmediately) })
	}
	if r, ok := port.(fx.Runnable); ok {
		b.Loop.AddRunnable(fx.NamedRun("port", r))
	}

	b.Loopback = relay.NewLoopback()
	b.Relay = relay.New(e, b.Loopback)
	b.Loop.AddDevice(b.Relay)

	b.Params = params.NewProtocol(e)
	e.OnParameterUpdate = b.Params.RequestUpdate
	b.Settings = txmenu.NewMemoryConfig(txmenu.DefaultSettings())
	b.Settings.OnChange = func(s txmenu.Settings) {
		glog.V(1).Infof("settings: %+v", s)
	}
	b.Menu = txmenu.New(b.Params, b.Settings, e, features)
	b.Menu.Version, b.Menu.Commit = Version, Commit
	b.Menu.Hooks = txmenu.Hooks{
		Bind:            func() { glog.Info("bind requested") },
		VtxSend:         func() { glog.Info("vtx settings sent") },
		RxWiFi:          func() { glog.Info("receiver wifi requested") },
		TxBackpackWiFi:  func() { glog.Info("tx backpack wifi requested") },
		VRxBackpackWiFi: func() { glog.Info("vrx backpack wifi requested") },
		RateChanged: func(r txmenu.Rate) {
			e.SetSyncParams(r.Interval)
		},
		TelemetryRatioChanged: b.Relay.SetTelemetryRatio,
	}
	if err := b.Menu.Register(); err != nil {
		return nil, err
	}
	b.applySettings(b.Settings.Settings())
	b.Loop.AddDevice(b.Params)

	if conf.StatsDB != "" {
		if b.Stats, err = statlog.Open(conf.StatsDB); err != nil {
			return nil, fmt.Errorf("stats db: %w", err)
		}
		b.closers = append(b.closers, namedCloser{"statlog", b.Stats})
		e.OnWatchdog = func(rep link.WatchdogReport) {
			if err := b.Stats.Record(rep); err != nil {
				glog.Errorf("stats db: %v", err)
			}
		}
	}

	if conf.MqttURL != "" {
		if b.queue, err = telemetry.NewQueueFromURL(conf.MqttURL); err != nil {
			b.release()
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		b.Publisher = telemetry.NewPublisher(b.queue, conf.LinkID(), e)
		b.Publisher.Inject(e)
		e.Mirror = b.Publisher.Mirror()
		b.Loop.AddDevice(b.Publisher)
		b.closers = append(b.closers, namedCloser{"mqtt", b.queue}, namedCloser{"publisher", b.Publisher})
	}
	return b, nil
}

func (b *Bridge) applySettings(s txmenu.Settings) {
	if int(s.Rate) < len(txmenu.Rates) {
		b.Engine.SetSyncParams(txmenu.Rates[s.Rate].Interval)
	}
	if int(s.TlmRatio) < len(txmenu.TlmRatios) {
		b.Relay.SetTelemetryRatio(txmenu.TlmRatios[s.TlmRatio])
	}
}

// Run runs the loop until ctx is done. The engine drains its output in its
// stop hook while the port is still open.
func (b *Bridge) Run(ctx context.Context) error {
	if b.queue != nil {
		token := b.queue.Connect()
		if token.Wait() && token.Error() != nil {
			glog.Warningf("mqtt: %v", token.Error())
		}
	}
	return b.Loop.Run(ctx)
}

// Close releases the broker connection, the database and the port.
func (b *Bridge) Close() error {
	errs := b.release()
	if c, ok := b.Port.(io.Closer); ok {
		errs.AddComponent("port", c.Close())
	}
	return errs.Aggregate()
}

func (b *Bridge) release() *fx.AggregatedError {
	var errs fx.AggregatedError
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs.AddComponent(b.closers[i].name, b.closers[i].Close())
	}
	b.closers = nil
	return &errs
}
