package params

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsflink/pkg/crsf"
	fx "github.com/robotalks/crsflink/pkg/framework"
)

type queuedFrame struct {
	frameType byte
	payload   []byte
}

type fakeLink struct {
	frames     []queuedFrame
	maxPacket  int
	good, bad  uint32
	luaMode    bool
	deviceInfo []byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{maxPacket: crsf.MaxPacketLen}
}

func (l *fakeLink) QueueExtended(frameType byte, payload []byte) bool {
	l.frames = append(l.frames, queuedFrame{frameType: frameType, payload: append([]byte(nil), payload...)})
	return true
}

func (l *fakeLink) SendDeviceInfo(fieldCount byte) bool {
	l.deviceInfo = append(l.deviceInfo, fieldCount)
	return true
}

func (l *fakeLink) MaxPacketBytes() int { return l.maxPacket }

func (l *fakeLink) PacketCounts() (good, bad uint32) { return l.good, l.bad }

func (l *fakeLink) LuaMode() bool { return l.luaMode }

func (l *fakeLink) take() []queuedFrame {
	frames := l.frames
	l.frames = nil
	return frames
}

func read(id, chunk byte) crsf.ParameterUpdate {
	return crsf.ParameterUpdate{Type: crsf.FrameTypeParameterRead, FieldID: id, Arg: chunk}
}

func write(id, arg byte) crsf.ParameterUpdate {
	return crsf.ParameterUpdate{Type: crsf.FrameTypeParameterWrite, FieldID: id, Arg: arg}
}

func TestSerialize(t *testing.T) {
	testCases := []struct {
		name string
		item Item
		lua  bool
		out  []byte
	}{
		{
			name: "folder",
			item: &Folder{Field: Field{Parent: 0, Name: "TX Power"}},
			out:  []byte("\x00\x0bTX Power\x00"),
		},
		{
			name: "selection",
			item: &Selection{Field: Field{Parent: 3, Name: "Rate"}, Value: 1, Options: "50;150;250", Units: "Hz"},
			out:  []byte("\x03\x09Rate\x0050;150;250\x00\x01\x00\x02\x00Hz\x00"),
		},
		{
			name: "command",
			item: &Command{Field: Field{Name: "Bind"}, Step: StepExecuting, Info: "Binding..."},
			out:  []byte("\x00\x0dBind\x00\x02\xc8Binding...\x00"),
		},
		{
			name: "int8",
			item: &Int8{Field: Field{Name: "Trim"}, Value: -2, Min: -10, Max: 10, Units: "us"},
			out:  []byte("\x00\x01Trim\x00\xfe\xf6\x0a\x00us\x00"),
		},
		{
			name: "uint8",
			item: &Uint8{Field: Field{Name: "Gain"}, Value: 5, Min: 0, Max: 200},
			out:  []byte("\x00\x00Gain\x00\x05\x00\xc8\x00\x00"),
		},
		{
			name: "int16",
			item: &Int16{Field: Field{Name: "Off"}, Value: -300, Min: -1000, Max: 1000, Units: "us"},
			out:  []byte("\x00\x03Off\x00\xfe\xd4\xfc\x18\x03\xe8\x00\x00us\x00"),
		},
		{
			name: "uint16",
			item: &Uint16{Field: Field{Name: "Freq"}, Value: 5800, Min: 5000, Max: 6000},
			out:  []byte("\x00\x02Freq\x00\x16\xa8\x13\x88\x17\x70\x00\x00\x00"),
		},
		{
			name: "string",
			item: &String{Field: Field{Name: "Pilot"}, Value: "ace"},
			out:  []byte("\x00\x0aPilot\x00ace\x00"),
		},
		{
			name: "hidden info",
			item: &Info{Field: Field{Name: "Bad/Good", Hidden: true}, Value: "0/250"},
			out:  []byte("\x00\x8cBad/Good\x000/250\x00"),
		},
		{
			name: "elrs hidden for others",
			item: &Info{Field: Field{Name: "x", ElrsHidden: true}, Value: ""},
			out:  []byte("\x00\x0cx\x00\x00"),
		},
		{
			name: "elrs hidden for lua",
			item: &Info{Field: Field{Name: "x", ElrsHidden: true}, Value: ""},
			lua:  true,
			out:  []byte("\x00\x8cx\x00\x00"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.out, Serialize(tc.item, tc.lua))
		})
	}
}

func TestChunk(t *testing.T) {
	const chunkMax = 10
	data := make([]byte, chunkMax*5/2)
	for i := range data {
		data[i] = byte(i)
	}
	var joined []byte
	for i := 0; i < 3; i++ {
		chunk, remaining, ok := Chunk(data, chunkMax, i)
		require.True(t, ok)
		require.Equal(t, 2-i, remaining)
		joined = append(joined, chunk...)
	}
	require.Equal(t, data, joined)

	_, _, ok := Chunk(data, chunkMax, 3)
	require.False(t, ok)
	_, _, ok = Chunk(data, 0, 0)
	require.False(t, ok)
}

func TestRegistry(t *testing.T) {
	p := NewProtocol(newFakeLink())
	folder := &Folder{Field: Field{Name: "Folder"}}
	id, err := p.Register(&Selection{Field: Field{Name: "A"}, Options: "x;y"}, nil, 0)
	require.NoError(t, err)
	require.Equal(t, byte(1), id)
	folderID, err := p.Register(folder, nil, 0)
	require.NoError(t, err)
	id, err = p.Register(&Info{Field: Field{Name: "B"}}, nil, folderID)
	require.NoError(t, err)
	require.Equal(t, byte(3), id)
	require.Equal(t, folderID, p.Item(3).Common().Parent)
	p.Complete()

	require.Equal(t, byte(3), p.FieldCount())
	require.Equal(t, "HooJ\x01\x02\xff", p.Item(0).Common().Name)
	require.Equal(t, []byte("\x00\x0bHooJ\x01\x02\xff\x00"), Serialize(p.Item(0), false))
	require.Nil(t, p.Item(4))
	require.Nil(t, p.Item(200))

	for i := 4; i < MaxFields; i++ {
		_, err = p.Register(&Info{}, nil, 0)
		require.NoError(t, err)
	}
	_, err = p.Register(&Info{}, nil, 0)
	require.Equal(t, ErrRegistryFull, err)
	require.Equal(t, byte(MaxFields-1), p.FieldCount())
}

func TestProtocolRead(t *testing.T) {
	link := newFakeLink()
	link.maxPacket = 20
	chunkMax := 20 - crsf.ExtOverhead - 2
	p := NewProtocol(link)
	sel := &Selection{
		Field:   Field{Name: "Packet Rate"},
		Value:   2,
		Options: "25(-123dbm);50(-120dbm);100(-117dbm);200(-112dbm)",
		Units:   "Hz",
	}
	id, err := p.Register(sel, nil, 0)
	require.NoError(t, err)
	p.Complete()

	data := Serialize(sel, false)
	count := (len(data) + chunkMax - 1) / chunkMax
	var joined []byte
	for i := 0; i < count; i++ {
		p.HandleUpdate(read(id, byte(i)))
		frames := link.take()
		require.Len(t, frames, 1)
		require.Equal(t, crsf.FrameTypeParameterSettingsEntry, frames[0].frameType)
		payload := frames[0].payload
		require.Equal(t, id, payload[0])
		require.Equal(t, byte(count-i-1), payload[1])
		require.True(t, len(payload) <= chunkMax+2)
		joined = append(joined, payload[2:]...)
	}
	require.Equal(t, data, joined)

	// out of range requests send nothing
	require.Equal(t, ErrChunkRange, p.HandleUpdate(read(id, byte(count))))
	require.Equal(t, ErrUnknownField, p.HandleUpdate(read(9, 0)))
	require.Equal(t, ErrUnknownField, p.HandleUpdate(read(0xF0, 0)))
	require.Empty(t, link.take())

	require.NoError(t, p.HandleUpdate(read(0, 0)))
	frames := link.take()
	require.Len(t, frames, 1)
	require.Equal(t, []byte("\x00\x00\x00\x0bHooJ\x01\xff\x00"), frames[0].payload)
}

func TestProtocolWrite(t *testing.T) {
	link := newFakeLink()
	p := NewProtocol(link)
	var calls [][2]byte
	id, err := p.Register(&Selection{Field: Field{Name: "A"}, Options: "x;y"}, func(id, arg byte) {
		calls = append(calls, [2]byte{id, arg})
	}, 0)
	require.NoError(t, err)
	info, err := p.Register(&Info{Field: Field{Name: "I"}}, nil, 0)
	require.NoError(t, err)
	p.Complete()

	require.NoError(t, p.HandleUpdate(write(id, 1)))
	require.Equal(t, [][2]byte{{id, 1}}, calls)
	require.Equal(t, ErrUnknownField, p.HandleUpdate(write(info, 1)))
	require.Equal(t, ErrUnknownField, p.HandleUpdate(write(30, 1)))
	require.Equal(t, ErrUnknownField, p.HandleUpdate(write(0x40, 1)))
	require.Len(t, calls, 1)
	require.Empty(t, link.take())
}

func TestProtocolPing(t *testing.T) {
	link := newFakeLink()
	p := NewProtocol(link)
	populated := 0
	p.Populate = func() { populated++ }
	_, err := p.Register(&Folder{Field: Field{Name: "A"}}, nil, 0)
	require.NoError(t, err)
	p.Complete()

	p.HandleUpdate(crsf.ParameterUpdate{Type: crsf.FrameTypeDevicePing})
	require.Equal(t, 1, populated)
	require.Equal(t, []byte{1}, link.deviceInfo)
}

func TestProtocolStatus(t *testing.T) {
	link := newFakeLink()
	link.good, link.bad = 300, 2
	p := NewProtocol(link)
	p.Complete()

	p.HandleUpdate(write(StatusFieldID, 0))
	frames := link.take()
	require.Len(t, frames, 1)
	require.Equal(t, crsf.FrameTypeElrsStatus, frames[0].frameType)
	require.Equal(t, []byte{2, 0x01, 0x2c, 0, 0}, frames[0].payload)

	p.SetWarningFlag(WarningConnected, true)
	p.SetWarningFlag(WarningModelMismatch, true)
	p.SendStatus()
	frames = link.take()
	require.Equal(t, append([]byte{2, 0x01, 0x2c, 0x05}, "Model Mismatch\x00"...), frames[0].payload)
}

func TestProtocolSuppressWarnings(t *testing.T) {
	p := NewProtocol(newFakeLink())
	p.SetWarningFlag(WarningModelMismatch, true)
	require.Equal(t, byte(0x04), p.WarningFlags())
	require.Equal(t, "Model Mismatch", p.WarningMessage())

	p.HandleUpdate(write(SuppressFieldID, 0))
	require.Zero(t, p.WarningFlags())
	require.Empty(t, p.WarningMessage())

	// new and critical warnings stay visible
	p.SetWarningFlag(WarningConnected, true)
	p.SetWarningFlag(WarningCritical3, true)
	require.Equal(t, byte(0x81), p.WarningFlags())
	p.SuppressWarnings()
	require.Equal(t, byte(0x80), p.WarningFlags())

	p.SetWarningFlag(WarningCritical3, false)
	require.Zero(t, p.WarningFlags())
}

func TestProtocolCommandResponse(t *testing.T) {
	link := newFakeLink()
	link.maxPacket = 16
	chunkMax := 16 - crsf.ExtOverhead - 2
	p := NewProtocol(link)
	cmd := &Command{Field: Field{Name: "Enable Rx WiFi"}}
	var args []byte
	id, err := p.Register(cmd, func(id, arg byte) {
		args = append(args, arg)
		if arg < byte(StepCancel) {
			p.SendCommandResponse(cmd, StepExecuting, "Sending...")
		} else {
			p.SendCommandResponse(cmd, StepIdle, "")
		}
	}, 0)
	require.NoError(t, err)
	p.Complete()

	p.HandleUpdate(write(id, byte(StepClick)))
	require.Equal(t, []byte{byte(StepClick)}, args)
	data := Serialize(cmd, false)
	count := (len(data) + chunkMax - 1) / chunkMax
	require.True(t, count > 2)

	var joined []byte
	for i := 0; i < count; i++ {
		if i > 0 {
			p.HandleUpdate(write(id, byte(StepQuery)))
		}
		frames := link.take()
		require.Len(t, frames, 1)
		require.Equal(t, byte(count-i-1), frames[0].payload[1])
		joined = append(joined, frames[0].payload[2:]...)
	}
	require.True(t, bytes.Equal(data, joined))
	require.Len(t, args, 1)

	// all chunks sent: a query reaches the callback
	p.HandleUpdate(write(id, byte(StepQuery)))
	require.Equal(t, []byte{byte(StepClick), byte(StepQuery)}, args)
	link.take()

	// a fresh read resets the status
	p.HandleUpdate(read(id, 0))
	require.Equal(t, StepIdle, cmd.Step)
	require.Empty(t, cmd.Info)
}

func TestProtocolDevice(t *testing.T) {
	link := newFakeLink()
	p := NewProtocol(link)
	populated := 0
	p.Populate = func() { populated++ }
	var args []byte
	id, err := p.Register(&Selection{Field: Field{Name: "A"}, Options: "x;y"}, func(id, arg byte) {
		args = append(args, arg)
	}, 0)
	require.NoError(t, err)
	p.Complete()

	loop := fx.NewLoop()
	loop.AddDevice(p)
	ctx := context.Background()
	require.Equal(t, fx.DurationNever, loop.Poll(ctx))
	require.Equal(t, 1, populated)

	p.RequestUpdate(write(id, 0))
	p.RequestUpdate(write(id, 1))
	require.Equal(t, fx.DurationNever, loop.Poll(ctx))
	require.Equal(t, []byte{1}, args)
	loop.Poll(ctx)
	require.Equal(t, []byte{1}, args)

	loop.TriggerEvent()
	loop.Poll(ctx)
	require.Equal(t, 2, populated)
}
