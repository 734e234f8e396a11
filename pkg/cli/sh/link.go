package sh

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	humanize "github.com/dustin/go-humanize"

	"github.com/robotalks/crsflink/pkg/bridge"
	"github.com/robotalks/crsflink/pkg/crsf"
	"github.com/robotalks/crsflink/pkg/params"
)

// Status is a snapshot of the link.
type Status struct {
	Connected  bool   `json:"connected"`
	Baud       int    `json:"baud"`
	Good       uint32 `json:"good"`
	Bad        uint32 `json:"bad"`
	IntervalUs int64  `json:"interval-us"`
	SyncOffset int32  `json:"sync-offset"`
	SyncMargin int32  `json:"sync-margin"`
	ModelID    byte   `json:"model-id"`
	LuaMode    bool   `json:"lua-mode"`
	UplinkLQ   byte   `json:"uplink-lq"`
	DownlinkLQ byte   `json:"downlink-lq"`
}

// ItemInfo describes a menu item.
type ItemInfo struct {
	ID     byte   `json:"id"`
	Parent byte   `json:"parent"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

func init() {
	AddCmds(
		&ishell.Cmd{
			Name: "status",
			Help: "show link status",
			Func: MustBeRunning(statusCmd),
		},
		&ishell.Cmd{
			Name:    "channels",
			Aliases: []string{"ch"},
			Help:    "show last RC channels",
			Func:    MustBeRunning(channelsCmd),
		},
		&ishell.Cmd{
			Name:    "params",
			Aliases: []string{"menu"},
			Help:    "list menu items",
			Func:    MustBeRunning(paramsCmd),
		},
		&ishell.Cmd{
			Name:     "read",
			Help:     "read ID shows a menu item and its encoding",
			LongHelp: "read ID\n  prints the item and the bytes sent for it before chunking",
			Func:     MustBeRunning(readCmd),
		},
		&ishell.Cmd{
			Name:     "write",
			Help:     "write ID VALUE to a menu item",
			LongHelp: "write ID VALUE\n  sets a menu item the way the handset does",
			Func:     MustBeRunning(writeCmd),
		},
		&ishell.Cmd{
			Name: "bauds",
			Help: "show baud rate candidates",
			Func: MustBeRunning(baudsCmd),
		},
		&ishell.Cmd{
			Name:     "tlm",
			Help:     "send a telemetry frame given in hex",
			LongHelp: "tlm HEX\n  HEX is a complete frame starting with the sync byte",
			Func:     MustBeRunning(tlmCmd),
		},
		&ishell.Cmd{
			Name:     "msp",
			Help:     "queue an MSP write: msp FUNC [HEX]",
			LongHelp: "msp FUNC [HEX]\n  FUNC is the MSP function, HEX the payload",
			Func:     MustBeRunning(mspCmd),
		},
		&ishell.Cmd{
			Name: "relay",
			Help: "show MSP relay counters",
			Func: MustBeRunning(relayCmd),
		},
		&ishell.Cmd{
			Name:    "history",
			Aliases: []string{"hist"},
			Help:    "show recent watchdog intervals: history [N]",
			Func:    MustBeRunning(historyCmd),
		},
	)
}

// ParseHex decodes hex bytes, separated by spaces or not, with optional
// 0x prefixes.
func ParseHex(args ...string) ([]byte, error) {
	var sb strings.Builder
	for _, arg := range args {
		for _, f := range strings.Fields(arg) {
			f = strings.TrimPrefix(strings.ToLower(f), "0x")
			if len(f)%2 != 0 {
				f = "0" + f
			}
			sb.WriteString(f)
		}
	}
	return hex.DecodeString(sb.String())
}

// ParseByte parses a decimal or 0x prefixed byte.
func ParseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}

// DescribeItem summarizes item.
func DescribeItem(item params.Item) ItemInfo {
	f := item.Common()
	info := ItemInfo{
		ID:     f.ID,
		Parent: f.Parent,
		Type:   item.Type().String(),
		Name:   f.Name,
		Hidden: f.Hidden || f.ElrsHidden,
	}
	switch it := item.(type) {
	case *params.Selection:
		info.Value = it.Option(it.Value) + it.Units
	case *params.Int8:
		info.Value = strconv.Itoa(int(it.Value))
	case *params.Uint8:
		info.Value = strconv.Itoa(int(it.Value))
	case *params.Int16:
		info.Value = strconv.Itoa(int(it.Value))
	case *params.Uint16:
		info.Value = strconv.Itoa(int(it.Value))
	case *params.String:
		info.Value = it.Value
	case *params.Info:
		info.Value = it.Value
	}
	return info
}

func statusCmd(c *ishell.Context) {
	var st Status
	if Invoke(c, func(b *bridge.Bridge) error {
		e := b.Engine
		st.Connected = e.Connected()
		st.Baud = e.Baud()
		st.Good, st.Bad = e.PacketCounts()
		st.IntervalUs = e.PacketInterval().Microseconds()
		st.SyncOffset = e.SyncOffset()
		st.SyncMargin = e.SyncMargin()
		st.ModelID = e.ModelID()
		st.LuaMode = e.LuaMode()
		stats := e.LinkStatistics()
		st.UplinkLQ, st.DownlinkLQ = stats.UplinkLQ(), stats.DownlinkLQ()
		return nil
	}) != nil {
		return
	}
	state := "disconnected"
	if st.Connected {
		state = "connected"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s at %s\n", state, humanize.SI(float64(st.Baud), "Bd"))
	fmt.Fprintf(&sb, "packets: %s good, %s bad\n", humanize.Comma(int64(st.Good)), humanize.Comma(int64(st.Bad)))
	fmt.Fprintf(&sb, "interval: %dus offset %d margin %d\n", st.IntervalUs, st.SyncOffset, st.SyncMargin)
	fmt.Fprintf(&sb, "model: %d lua: %v lq: %d/%d\n", st.ModelID, st.LuaMode, st.UplinkLQ, st.DownlinkLQ)
	Print(c, st, sb.String())
}

func channelsCmd(c *ishell.Context) {
	var (
		ch crsf.ChannelData
		at time.Time
	)
	if Invoke(c, func(b *bridge.Bridge) error {
		ch, at = b.Engine.Channels()
		return nil
	}) != nil {
		return
	}
	if at.IsZero() {
		c.Println("no RC data")
		return
	}
	Print(c, ch, FormatChannels(ch)+fmt.Sprintf("received %s\n", humanize.Time(at)))
}

// FormatChannels lists raw channel values with their pulse widths, four
// channels per line.
func FormatChannels(ch crsf.ChannelData) string {
	var sb strings.Builder
	for i, v := range ch {
		fmt.Fprintf(&sb, "ch%-2d %4d %4dus", i+1, v, crsf.ChannelToMicros(v))
		if i%4 == 3 {
			sb.WriteString("\n")
		} else {
			sb.WriteString("  ")
		}
	}
	return sb.String()
}

func paramsCmd(c *ishell.Context) {
	var items []ItemInfo
	if Invoke(c, func(b *bridge.Bridge) error {
		for id := byte(1); id <= b.Params.FieldCount(); id++ {
			if item := b.Params.Item(id); item != nil {
				items = append(items, DescribeItem(item))
			}
		}
		return nil
	}) != nil {
		return
	}
	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "%3d %3d %-8s %-22s %s\n", it.ID, it.Parent, it.Type, it.Name, it.Value)
	}
	Print(c, items, sb.String())
}

func readCmd(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Err(fmt.Errorf("expect ID"))
		return
	}
	id, err := ParseByte(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	var (
		info ItemInfo
		data []byte
	)
	if Invoke(c, func(b *bridge.Bridge) error {
		item := b.Params.Item(id)
		if item == nil {
			return fmt.Errorf("no item %d", id)
		}
		info = DescribeItem(item)
		data = params.Serialize(item, b.Engine.LuaMode())
		return nil
	}) != nil {
		return
	}
	text := fmt.Sprintf("%d %s %s = %s\n% x (%s)\n", info.ID, info.Type, info.Name, info.Value,
		data, humanize.Bytes(uint64(len(data))))
	Print(c, info, text)
}

func writeCmd(c *ishell.Context) {
	if len(c.Args) != 2 {
		c.Err(fmt.Errorf("expect ID VALUE"))
		return
	}
	id, err := ParseByte(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	arg, err := ParseByte(c.Args[1])
	if err != nil {
		c.Err(err)
		return
	}
	var info ItemInfo
	if Invoke(c, func(b *bridge.Bridge) error {
		err := b.Params.HandleUpdate(crsf.ParameterUpdate{
			Type:    crsf.FrameTypeParameterWrite,
			FieldID: id,
			Arg:     arg,
		})
		if err != nil {
			return fmt.Errorf("write %d: %v", id, err)
		}
		if item := b.Params.Item(id); item != nil {
			info = DescribeItem(item)
		}
		return nil
	}) != nil {
		return
	}
	Print(c, info, fmt.Sprintf("%s = %s\n", info.Name, info.Value))
}

func baudsCmd(c *ishell.Context) {
	var (
		bauds   []int
		current int
	)
	if Invoke(c, func(b *bridge.Bridge) error {
		bauds, current = b.Engine.BaudRates, b.Engine.Baud()
		return nil
	}) != nil {
		return
	}
	var sb strings.Builder
	for _, baud := range bauds {
		mark := " "
		if baud == current {
			mark = "*"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, humanize.SI(float64(baud), "Bd"))
	}
	Print(c, bauds, sb.String())
}

func tlmCmd(c *ishell.Context) {
	frame, err := ParseHex(c.Args...)
	if err != nil {
		c.Err(err)
		return
	}
	Invoke(c, func(b *bridge.Bridge) error {
		return b.Engine.SendTelemetry(frame)
	})
}

func mspCmd(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("expect FUNC [HEX]"))
		return
	}
	fn, err := ParseByte(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	payload, err := ParseHex(c.Args[1:]...)
	if err != nil {
		c.Err(err)
		return
	}
	Invoke(c, func(b *bridge.Bridge) error {
		return b.Engine.AddMspPacket(fn, payload)
	})
}

func relayCmd(c *ishell.Context) {
	var stats interface{}
	var text string
	if Invoke(c, func(b *bridge.Bridge) error {
		st := b.Relay.Stats()
		stats = st
		text = fmt.Sprintf("slots %s lost %s submitted %d delivered %d failed %d dropped %d\n",
			humanize.Comma(int64(st.Slots)), humanize.Comma(int64(st.Lost)),
			st.Submitted, st.Delivered, st.Failed, st.Dropped)
		return nil
	}) != nil {
		return
	}
	Print(c, stats, text)
}

func historyCmd(c *ishell.Context) {
	n := 10
	if len(c.Args) > 0 {
		v, err := strconv.Atoi(c.Args[0])
		if err != nil || v < 1 {
			c.Err(fmt.Errorf("invalid count %q", c.Args[0]))
			return
		}
		n = v
	}
	b := ShellFrom(c).Link.Bridge
	if b.Stats == nil {
		c.Err(fmt.Errorf("history not enabled, set --stats-db"))
		return
	}
	entries, err := b.Stats.Recent(n)
	if err != nil {
		c.Err(err)
		return
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%-16s %8s good %-6d bad %-6d rotated %v\n",
			humanize.Time(e.Time()), humanize.SI(float64(e.Baud), "Bd"), e.Good, e.Bad, e.Rotated)
	}
	Print(c, entries, sb.String())
}
