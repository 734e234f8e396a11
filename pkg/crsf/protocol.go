package crsf

// SyncByte starts frames sent by the handset.
const SyncByte byte = 0xC8

// Frame size limits.
const (
	// MaxPacketLen is the largest frame on the wire, address to CRC.
	MaxPacketLen = 64
	// MaxPayloadLen is the largest value of the length byte.
	MaxPayloadLen = 62
	// LinkStatisticsLen is the size of the link statistics payload.
	LinkStatisticsLen = 10
	// RCChannelsLen is the size of the packed channels payload.
	RCChannelsLen = 22
	// ExtHeaderLen is address, length, type, destination and origin.
	ExtHeaderLen = 5
	// ExtOverhead is the wire size of an extended frame minus its payload.
	ExtOverhead = ExtHeaderLen + 1
)

// Device addresses.
const (
	AddrBroadcast        byte = 0x00
	AddrUSB              byte = 0x10
	AddrBluetooth        byte = 0x12
	AddrTBSCorePNPPro    byte = 0x80
	AddrCurrentSensor    byte = 0xC0
	AddrGPS              byte = 0xC2
	AddrTBSBlackbox      byte = 0xC4
	AddrFlightController byte = 0xC8
	AddrRaceTag          byte = 0xCC
	AddrRadioTransmitter byte = 0xEA
	AddrCRSFReceiver     byte = 0xEC
	AddrCRSFTransmitter  byte = 0xEE
	AddrElrsLua          byte = 0xEF
)

// Frame types.
const (
	FrameTypeGPS                    byte = 0x02
	FrameTypeVario                  byte = 0x07
	FrameTypeBatterySensor          byte = 0x08
	FrameTypeBaroAltitude           byte = 0x09
	FrameTypeOpenTXSync             byte = 0x10
	FrameTypeLinkStatistics         byte = 0x14
	FrameTypeRCChannelsPacked       byte = 0x16
	FrameTypeAttitude               byte = 0x1E
	FrameTypeFlightMode             byte = 0x21
	FrameTypeDevicePing             byte = 0x28
	FrameTypeDeviceInfo             byte = 0x29
	FrameTypeParameterSettingsEntry byte = 0x2B
	FrameTypeParameterRead          byte = 0x2C
	FrameTypeParameterWrite         byte = 0x2D
	FrameTypeElrsStatus             byte = 0x2E
	FrameTypeCommand                byte = 0x32
	FrameTypeRadioID                byte = 0x3A
	FrameTypeMspReq                 byte = 0x7A
	FrameTypeMspResp                byte = 0x7B
	FrameTypeMspWrite               byte = 0x7C
)

// Command frame sub commands.
const (
	SubcommandCRSF       byte = 0x10
	CommandModelSelectID byte = 0x05
)

// ParameterUpdate is the request carried by a frame addressed to the
// transmitter by the radio or the ELRS Lua agent.
type ParameterUpdate struct {
	Type    byte
	FieldID byte
	Arg     byte
}
