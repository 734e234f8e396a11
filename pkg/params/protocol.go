package params

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/crsflink/pkg/crsf"
	fx "github.com/robotalks/crsflink/pkg/framework"
)

// MaxFields bounds the registry, the root folder included.
const MaxFields = 32

// Reserved field ids of parameter writes.
const (
	StatusFieldID   byte = 0
	SuppressFieldID byte = 0x2E
)

// RootName starts the name of the root folder.
const RootName = "HooJ"

// Link is the frame engine side used by the Protocol. It is implemented by
// *link.Engine.
type Link interface {
	QueueExtended(frameType byte, payload []byte) bool
	SendDeviceInfo(fieldCount byte) bool
	MaxPacketBytes() int
	PacketCounts() (good, bad uint32)
	LuaMode() bool
}

// Callback is called when the handset writes arg to item id.
type Callback func(id, arg byte)

// Protocol answers parameter requests from the handset.
//
// Except RequestUpdate, methods must be called from the goroutine running
// the Protocol, normally the framework.Loop.
type Protocol struct {
	Link Link
	// Populate refreshes item values before they are read.
	Populate func()

	items     [MaxFields]Item
	callbacks [MaxFields]Callback
	last      byte
	root      Folder

	warnings   byte
	suppressed byte

	statusItem      Item
	nextStatusChunk int

	lock    sync.Mutex
	pending *crsf.ParameterUpdate
	loop    fx.LoopControl
}

// NewProtocol creates a Protocol answering through link.
func NewProtocol(link Link) *Protocol {
	return &Protocol{Link: link, suppressed: 0xFF}
}

// Register adds item with a callback under the folder parent and assigns
// the next id.
func (p *Protocol) Register(item Item, cb Callback, parent byte) (byte, error) {
	if int(p.last)+1 >= MaxFields {
		return 0, ErrRegistryFull
	}
	p.last++
	f := item.Common()
	f.ID, f.Parent = p.last, parent
	p.items[f.ID] = item
	p.callbacks[f.ID] = cb
	return f.ID, nil
}

// Complete ends registration. It builds the root folder, id 0, which lists
// the top level items.
func (p *Protocol) Complete() {
	name := []byte(RootName)
	for id := byte(1); id <= p.last; id++ {
		if p.items[id].Common().Parent == 0 {
			name = append(name, id)
		}
	}
	name = append(name, 0xFF)
	p.root = Folder{Field: Field{Name: string(name)}}
	p.items[0] = &p.root
	p.callbacks[0] = nil
}

// FieldCount returns the number of registered items.
func (p *Protocol) FieldCount() byte {
	return p.last
}

// Item returns the item with id, nil if none.
func (p *Protocol) Item(id byte) Item {
	if int(id) >= MaxFields {
		return nil
	}
	return p.items[id]
}

// RequestUpdate stages a request for the next Timeout. Only the latest
// request is kept. It is safe for concurrent use.
func (p *Protocol) RequestUpdate(u crsf.ParameterUpdate) {
	p.lock.Lock()
	p.pending = &u
	loop := p.loop
	p.lock.Unlock()
	if loop != nil {
		loop.Schedule(p, fx.DurationImmediately)
	}
}

// Start implements framework.Starter.
func (p *Protocol) Start(cc fx.ControlContext) time.Duration {
	p.lock.Lock()
	p.loop = cc
	p.lock.Unlock()
	if p.Populate != nil {
		p.Populate()
	}
	return fx.DurationImmediately
}

// Event implements framework.EventHandler.
func (p *Protocol) Event(cc fx.ControlContext) time.Duration {
	if p.Populate != nil {
		p.Populate()
	}
	return fx.DurationIgnore
}

// Timeout implements framework.Device. It handles the staged request.
func (p *Protocol) Timeout(cc fx.ControlContext) time.Duration {
	p.lock.Lock()
	u := p.pending
	p.pending = nil
	p.lock.Unlock()
	if u != nil {
		if err := p.HandleUpdate(*u); err != nil {
			glog.V(2).Infof("params: request %#x field %d: %v", u.Type, u.FieldID, err)
		}
	}
	return fx.DurationNever
}

// HandleUpdate answers one request. It returns ErrUnknownField when a
// read or write names no registered item.
func (p *Protocol) HandleUpdate(u crsf.ParameterUpdate) error {
	switch u.Type {
	case crsf.FrameTypeParameterWrite:
		switch u.FieldID {
		case StatusFieldID:
			glog.V(2).Info("params: status request")
			p.SendStatus()
		case SuppressFieldID:
			p.SuppressWarnings()
		default:
			return p.write(u.FieldID, u.Arg)
		}
	case crsf.FrameTypeDevicePing:
		if p.Populate != nil {
			p.Populate()
		}
		p.Link.SendDeviceInfo(p.last)
	case crsf.FrameTypeParameterRead:
		glog.V(2).Infof("params: read %d chunk %d", u.FieldID, u.Arg)
		item := p.Item(u.FieldID)
		if item == nil {
			return ErrUnknownField
		}
		if cmd, ok := item.(*Command); ok && u.Arg == 0 {
			cmd.Step, cmd.Info = StepIdle, ""
		}
		_, err := p.SendField(item, int(u.Arg))
		return err
	default:
		glog.V(2).Infof("params: unknown request %#x", u.Type)
	}
	return nil
}

func (p *Protocol) write(id, arg byte) error {
	if int(id) >= MaxFields || p.callbacks[id] == nil {
		return ErrUnknownField
	}
	glog.V(1).Infof("params: set %q = %d", p.items[id].Common().Name, arg)
	if arg == byte(StepQuery) && p.nextStatusChunk != 0 && p.statusItem == p.items[id] {
		p.pushResponseChunk()
		return nil
	}
	p.callbacks[id](id, arg)
	return nil
}

// SendField queues chunk index of item and returns how many chunks follow.
func (p *Protocol) SendField(item Item, index int) (int, error) {
	chunkMax := p.Link.MaxPacketBytes() - crsf.ExtOverhead - 2
	data := Serialize(item, p.Link.LuaMode())
	chunk, remaining, ok := Chunk(data, chunkMax, index)
	if !ok {
		return 0, ErrChunkRange
	}
	payload := make([]byte, 0, len(chunk)+2)
	payload = append(payload, item.Common().ID, byte(remaining))
	payload = append(payload, chunk...)
	p.Link.QueueExtended(crsf.FrameTypeParameterSettingsEntry, payload)
	return remaining, nil
}

// SendCommandResponse sets the step and status text of cmd and sends its
// first chunk. Further chunks are sent when the handset queries.
func (p *Protocol) SendCommandResponse(cmd *Command, step CommandStep, info string) {
	cmd.Step, cmd.Info = step, info
	p.statusItem = cmd
	p.nextStatusChunk = 0
	p.pushResponseChunk()
}

func (p *Protocol) pushResponseChunk() {
	remaining, err := p.SendField(p.statusItem, p.nextStatusChunk)
	if err != nil || remaining == 0 {
		p.nextStatusChunk = 0
		return
	}
	p.nextStatusChunk++
}

// SendStatus queues the status frame:
//
//	[bad][good BE16][flags][message NUL]
func (p *Protocol) SendStatus() {
	good, bad := p.Link.PacketCounts()
	msg := p.WarningMessage()
	payload := make([]byte, 0, len(msg)+5)
	payload = append(payload, byte(bad))
	payload = binary.BigEndian.AppendUint16(payload, uint16(good))
	payload = append(payload, p.WarningFlags())
	payload = append(payload, msg...)
	payload = append(payload, 0)
	p.Link.QueueExtended(crsf.FrameTypeElrsStatus, payload)
}

var (
	_ fx.Starter      = (*Protocol)(nil)
	_ fx.EventHandler = (*Protocol)(nil)
)
