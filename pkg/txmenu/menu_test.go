package txmenu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsflink/pkg/crsf"
	"github.com/robotalks/crsflink/pkg/params"
)

type mspCall struct {
	function byte
	payload  []byte
}

type fakeLink struct {
	connected bool
	modelID   byte
	baud      int
	good, bad uint32
	msp       []mspCall
	frames    [][]byte
}

func (l *fakeLink) Connected() bool                  { return l.connected }
func (l *fakeLink) ModelID() byte                    { return l.modelID }
func (l *fakeLink) Baud() int                        { return l.baud }
func (l *fakeLink) PacketCounts() (good, bad uint32) { return l.good, l.bad }
func (l *fakeLink) LuaMode() bool                    { return false }
func (l *fakeLink) MaxPacketBytes() int              { return crsf.MaxPacketLen }
func (l *fakeLink) SendDeviceInfo(byte) bool         { return true }

func (l *fakeLink) QueueExtended(frameType byte, payload []byte) bool {
	l.frames = append(l.frames, append([]byte{frameType}, payload...))
	return true
}

func (l *fakeLink) AddMspPacket(function byte, payload []byte) error {
	l.msp = append(l.msp, mspCall{function: function, payload: append([]byte(nil), payload...)})
	return nil
}

func newTestMenu(t *testing.T, features Features) (*Menu, *fakeLink, *MemoryConfig) {
	link := &fakeLink{baud: 400000, modelID: 7}
	cfg := NewMemoryConfig(DefaultSettings())
	p := params.NewProtocol(link)
	m := New(p, cfg, link, features)
	m.Version = "1.0.0"
	m.Commit = "abc123"
	require.NoError(t, m.Register())
	return m, link, cfg
}

func findItem(t *testing.T, m *Menu, name string) (byte, params.Item) {
	for id := byte(1); id <= m.Protocol.FieldCount(); id++ {
		item := m.Protocol.Item(id)
		if item.Common().Name == name {
			return id, item
		}
	}
	t.Fatalf("item %q not registered", name)
	return 0, nil
}

func write(m *Menu, id, arg byte) {
	m.Protocol.HandleUpdate(crsf.ParameterUpdate{Type: crsf.FrameTypeParameterWrite, FieldID: id, Arg: arg})
}

func TestOptions(t *testing.T) {
	require.Equal(t, "50(-117dbm);150(-112dbm);250(-108dbm);500(-105dbm)", RateOptions())
	require.Equal(t, "10;25;50;100;250;500;1000;2000", PowerOptions(Power10mW, Power2000mW))
	require.Equal(t, "25;50;100", PowerOptions(Power25mW, Power100mW))
	require.Equal(t, "2000", PowerOptions(Power2000mW, Power2000mW+3))
}

func TestRegister(t *testing.T) {
	m, _, _ := newTestMenu(t, DefaultFeatures())
	_, power := findItem(t, m, "TX Power")
	_, maxPower := findItem(t, m, "Max Power")
	require.Equal(t, power.Common().ID, maxPower.Common().Parent)
	_, version := findItem(t, m, "1.0.0")
	require.Equal(t, "abc123", version.(*params.Info).Value)

	for id := byte(1); id <= m.Protocol.FieldCount(); id++ {
		require.NotEqual(t, "DVR AUX", m.Protocol.Item(id).Common().Name)
	}
	root := m.Protocol.Item(0).Common().Name
	require.True(t, strings.HasPrefix(root, params.RootName))
	require.Equal(t, byte(0xFF), root[len(root)-1])

	mb, _, _ := newTestMenu(t, Features{Backpack: true, MinPower: Power10mW, MaxPower: Power250mW})
	_, dvr := findItem(t, mb, "DVR AUX")
	_, folder := findItem(t, mb, "Backpack")
	require.Equal(t, folder.Common().ID, dvr.Common().Parent)
	_, maxPower = findItem(t, mb, "Max Power")
	require.Equal(t, "10;25;50;100;250", maxPower.(*params.Selection).Options)
	require.True(t, mb.Protocol.FieldCount() < params.MaxFields)
}

func TestRate(t *testing.T) {
	m, link, cfg := newTestMenu(t, DefaultFeatures())
	var changed []Rate
	m.Hooks.RateChanged = func(r Rate) { changed = append(changed, r) }
	id, item := findItem(t, m, "Packet Rate")

	// option 3 is the fastest
	write(m, id, 3)
	require.Equal(t, byte(0), cfg.Settings().Rate)
	require.Equal(t, 500, changed[0].Hz)
	write(m, id, 0)
	require.Equal(t, byte(3), cfg.Settings().Rate)
	write(m, id, 4)
	require.Len(t, changed, 2)

	m.Populate()
	require.Equal(t, byte(0), item.(*params.Selection).Value)

	link.baud = 115200
	write(m, id, 3)
	require.Equal(t, byte(1), cfg.Settings().Rate)
	require.Equal(t, 250, changed[2].Hz)
	m.Populate()
	require.Equal(t, byte(2), item.(*params.Selection).Value)
}

func TestTelemetryRatio(t *testing.T) {
	m, _, cfg := newTestMenu(t, DefaultFeatures())
	var ratio []int
	m.Hooks.TelemetryRatioChanged = func(n int) { ratio = append(ratio, n) }
	id, _ := findItem(t, m, "Telem Ratio")
	write(m, id, 7)
	write(m, id, 0)
	write(m, id, 8)
	require.Equal(t, []int{2, 0}, ratio)
	require.Equal(t, byte(0), cfg.Settings().TlmRatio)
}

func TestSwitchMode(t *testing.T) {
	m, link, cfg := newTestMenu(t, DefaultFeatures())
	id, item := findItem(t, m, "Switch Mode")
	write(m, id, 1)
	require.Equal(t, SwitchWide, cfg.Settings().SwitchMode)
	m.Populate()
	require.Equal(t, byte(1), item.(*params.Selection).Value)

	link.connected = true
	write(m, id, 0)
	require.Equal(t, SwitchWide, cfg.Settings().SwitchMode)
}

func TestModelMatch(t *testing.T) {
	m, link, cfg := newTestMenu(t, DefaultFeatures())
	id, _ := findItem(t, m, "Model Match")
	write(m, id, 1)
	require.True(t, cfg.Settings().ModelMatch)
	require.Empty(t, link.msp)

	link.connected = true
	write(m, id, 1)
	write(m, id, 0)
	require.Equal(t, []mspCall{
		{function: crsf.MspSetRxConfig, payload: []byte{crsf.MspElrsModelID, 7}},
		{function: crsf.MspSetRxConfig, payload: []byte{crsf.MspElrsModelID, 0xFF}},
	}, link.msp)
	require.False(t, cfg.Settings().ModelMatch)
}

func TestPower(t *testing.T) {
	m, _, cfg := newTestMenu(t, Features{MinPower: Power25mW, MaxPower: Power250mW})
	id, item := findItem(t, m, "Max Power")
	write(m, id, 0)
	require.Equal(t, Power25mW, cfg.Settings().Power)
	write(m, id, 2)
	require.Equal(t, Power100mW, cfg.Settings().Power)
	write(m, id, 9)
	require.Equal(t, Power250mW, cfg.Settings().Power)
	m.Populate()
	require.Equal(t, byte(3), item.(*params.Selection).Value)

	dyn, dynItem := findItem(t, m, "Dynamic")
	write(m, dyn, 3)
	s := cfg.Settings()
	require.True(t, s.DynamicPower)
	require.Equal(t, byte(2), s.BoostChannel)
	m.Populate()
	require.Equal(t, byte(3), dynItem.(*params.Selection).Value)
	write(m, dyn, 0)
	require.False(t, cfg.Settings().DynamicPower)
	m.Populate()
	require.Equal(t, byte(0), dynItem.(*params.Selection).Value)
}

func TestCommands(t *testing.T) {
	m, link, _ := newTestMenu(t, DefaultFeatures())
	bound := 0
	m.Hooks.Bind = func() { bound++ }
	id, item := findItem(t, m, "Bind")
	cmd := item.(*params.Command)

	write(m, id, byte(params.StepClick))
	require.Equal(t, 1, bound)
	require.Equal(t, params.StepExecuting, cmd.Step)
	require.Equal(t, "Binding...", cmd.Info)
	require.NotEmpty(t, link.frames)
	require.Equal(t, crsf.FrameTypeParameterSettingsEntry, link.frames[0][0])
	require.Equal(t, id, link.frames[0][1])

	write(m, id, byte(params.StepCancel))
	require.Equal(t, 1, bound)
	require.Equal(t, params.StepIdle, cmd.Step)
	require.Empty(t, cmd.Info)

	// no hook still answers
	vtx, vtxItem := findItem(t, m, "Send VTx")
	write(m, vtx, byte(params.StepClick))
	require.Equal(t, "Sending...", vtxItem.(*params.Command).Info)
}

func TestVtxSettings(t *testing.T) {
	m, _, cfg := newTestMenu(t, DefaultFeatures())
	band, _ := findItem(t, m, "Band")
	ch, _ := findItem(t, m, "Channel")
	pwr, _ := findItem(t, m, "Pwr Lvl")
	pit, _ := findItem(t, m, "Pitmode")
	write(m, band, 5)
	write(m, ch, 3)
	write(m, pwr, 2)
	write(m, pit, 1)
	s := cfg.Settings()
	require.Equal(t, byte(5), s.VtxBand)
	require.Equal(t, byte(3), s.VtxChannel)
	require.Equal(t, byte(2), s.VtxPower)
	require.Equal(t, byte(1), s.VtxPitmode)
}

func TestPopulateWarnings(t *testing.T) {
	m, link, _ := newTestMenu(t, DefaultFeatures())
	matched := false
	m.Hooks.ModelMatched = func() bool { return matched }
	link.good, link.bad = 250, 3

	m.Populate()
	require.Zero(t, m.Protocol.WarningFlags())
	_, info := findItem(t, m, "Bad/Good")
	require.Equal(t, "3/250", info.(*params.Info).Value)

	link.connected = true
	m.Populate()
	require.Equal(t, byte(0x05), m.Protocol.WarningFlags())
	require.Equal(t, "Model Mismatch", m.Protocol.WarningMessage())

	matched = true
	m.Populate()
	require.Equal(t, byte(0x01), m.Protocol.WarningFlags())
}

func TestMemoryConfig(t *testing.T) {
	var seen []Settings
	cfg := NewMemoryConfig(DefaultSettings())
	cfg.OnChange = func(s Settings) { seen = append(seen, s) }
	cfg.Update(func(s *Settings) { s.VtxBand = 2 })
	require.Len(t, seen, 1)
	require.Equal(t, byte(2), seen[0].VtxBand)
	require.Equal(t, byte(2), cfg.Settings().VtxBand)
}
