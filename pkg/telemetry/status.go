package telemetry

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/crsflink/pkg/crsf"
)

// LinkStatus is the snapshot published on the status topic. Its schema is
// status.proto.
type LinkStatus struct {
	DeviceId    string `protobuf:"bytes,1,opt,name=device_id,json=deviceId,proto3" json:"device_id,omitempty"`
	Connected   bool   `protobuf:"varint,2,opt,name=connected,proto3" json:"connected,omitempty"`
	Baud        uint32 `protobuf:"varint,3,opt,name=baud,proto3" json:"baud,omitempty"`
	Good        uint32 `protobuf:"varint,4,opt,name=good,proto3" json:"good,omitempty"`
	Bad         uint32 `protobuf:"varint,5,opt,name=bad,proto3" json:"bad,omitempty"`
	SyncOffset  int32  `protobuf:"zigzag32,6,opt,name=sync_offset,json=syncOffset,proto3" json:"sync_offset,omitempty"`
	SyncMargin  int32  `protobuf:"zigzag32,7,opt,name=sync_margin,json=syncMargin,proto3" json:"sync_margin,omitempty"`
	ModelId     uint32 `protobuf:"varint,8,opt,name=model_id,json=modelId,proto3" json:"model_id,omitempty"`
	UplinkLq    uint32 `protobuf:"varint,9,opt,name=uplink_lq,json=uplinkLq,proto3" json:"uplink_lq,omitempty"`
	DownlinkLq  uint32 `protobuf:"varint,10,opt,name=downlink_lq,json=downlinkLq,proto3" json:"downlink_lq,omitempty"`
	LuaMode     bool   `protobuf:"varint,11,opt,name=lua_mode,json=luaMode,proto3" json:"lua_mode,omitempty"`
	TimestampMs int64  `protobuf:"varint,12,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

// Reset implements proto.Message.
func (m *LinkStatus) Reset() { *m = LinkStatus{} }

// String implements proto.Message.
func (m *LinkStatus) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*LinkStatus) ProtoMessage() {}

// Source is the engine side of a snapshot. It is implemented by
// *link.Engine. Baud, SyncOffset and SyncMargin must be read from the loop
// running the engine.
type Source interface {
	Connected() bool
	Baud() int
	PacketCounts() (good, bad uint32)
	SyncOffset() int32
	SyncMargin() int32
	ModelID() byte
	LuaMode() bool
	LinkStatistics() crsf.LinkStatistics
}

// Snapshot captures the state of src.
func Snapshot(deviceID string, src Source, now time.Time) *LinkStatus {
	good, bad := src.PacketCounts()
	stats := src.LinkStatistics()
	return &LinkStatus{
		DeviceId:    deviceID,
		Connected:   src.Connected(),
		Baud:        uint32(src.Baud()),
		Good:        good,
		Bad:         bad,
		SyncOffset:  src.SyncOffset(),
		SyncMargin:  src.SyncMargin(),
		ModelId:     uint32(src.ModelID()),
		UplinkLq:    uint32(stats.UplinkLQ()),
		DownlinkLq:  uint32(stats.DownlinkLQ()),
		LuaMode:     src.LuaMode(),
		TimestampMs: now.UnixNano() / int64(time.Millisecond),
	}
}
