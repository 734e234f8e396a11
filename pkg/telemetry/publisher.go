package telemetry

import (
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/crsflink/pkg/framework"
)

// Topics under the device id.
const (
	// TopicStatus carries retained LinkStatus snapshots.
	TopicStatus = "status"
	// TopicTx mirrors the bytes written to the handset.
	TopicTx = "tx"
	// TopicTelemetry accepts complete frames for the handset.
	TopicTelemetry = "telemetry"
	// TopicMsp accepts complete frames for the MSP relay.
	TopicMsp = "msp"
)

// DefaultStatusInterval is the period of status snapshots.
const DefaultStatusInterval = time.Second

// Sink takes injected frames. It is implemented by *link.Engine.
type Sink interface {
	SendTelemetry(frame []byte) error
	AddMspMessage(frame []byte) bool
}

// Publisher is a framework.Device publishing snapshots of Source.
type Publisher struct {
	Queue    *Queue
	DeviceID string
	Source   Source
	Interval time.Duration

	subs []*Subscription
}

// NewPublisher creates a Publisher.
func NewPublisher(q *Queue, deviceID string, src Source) *Publisher {
	return &Publisher{Queue: q, DeviceID: deviceID, Source: src, Interval: DefaultStatusInterval}
}

// Topic returns the topic of name for this device.
func (p *Publisher) Topic(name string) string {
	return p.DeviceID + "/" + name
}

// Mirror returns a writer publishing each write on TopicTx.
func (p *Publisher) Mirror() io.Writer {
	return mirror{p}
}

type mirror struct {
	p *Publisher
}

func (m mirror) Write(b []byte) (int, error) {
	m.p.Queue.Pub(m.p.Topic(TopicTx), append([]byte(nil), b...))
	return len(b), nil
}

// Inject subscribes to the inbound topics and forwards frames to sink.
func (p *Publisher) Inject(sink Sink) {
	p.subs = append(p.subs,
		p.Queue.Sub(p.Topic(TopicTelemetry), func(topic string, payload []byte) {
			if err := sink.SendTelemetry(append([]byte(nil), payload...)); err != nil {
				glog.Warningf("telemetry: inject %d bytes: %v", len(payload), err)
			}
		}),
		p.Queue.Sub(p.Topic(TopicMsp), func(topic string, payload []byte) {
			if !sink.AddMspMessage(payload) {
				glog.Warningf("telemetry: msp message of %d bytes not queued", len(payload))
			}
		}),
	)
}

// Publish publishes a snapshot taken at now.
func (p *Publisher) Publish(now time.Time) error {
	data, err := proto.Marshal(Snapshot(p.DeviceID, p.Source, now))
	if err != nil {
		return err
	}
	p.Queue.PubWith(p.Topic(TopicStatus), data, 0, true)
	return nil
}

// Timeout implements framework.Device.
func (p *Publisher) Timeout(cc fx.ControlContext) time.Duration {
	if err := p.Publish(cc.Time()); err != nil {
		glog.Errorf("telemetry: status: %v", err)
	}
	return p.Interval
}

// Close unsubscribes the inbound topics.
func (p *Publisher) Close() error {
	var errs fx.AggregatedError
	for _, sub := range p.subs {
		errs.AddComponent(sub.pattern, sub.Close())
	}
	p.subs = nil
	return errs.Aggregate()
}
