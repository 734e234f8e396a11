package crsf

import "encoding/binary"

// LinkStatistics is the payload of a link statistics frame.
type LinkStatistics [LinkStatisticsLen]byte

// UplinkRSSI1 returns the first antenna RSSI in -dBm.
func (s LinkStatistics) UplinkRSSI1() byte { return s[0] }

// UplinkRSSI2 returns the second antenna RSSI in -dBm.
func (s LinkStatistics) UplinkRSSI2() byte { return s[1] }

// UplinkLQ returns the uplink link quality in percent.
func (s LinkStatistics) UplinkLQ() byte { return s[2] }

// UplinkSNR returns the uplink SNR in dB.
func (s LinkStatistics) UplinkSNR() int8 { return int8(s[3]) }

// ActiveAntenna returns the antenna in use.
func (s LinkStatistics) ActiveAntenna() byte { return s[4] }

// RFMode returns the packet rate index.
func (s LinkStatistics) RFMode() byte { return s[5] }

// UplinkTXPower returns the power index.
func (s LinkStatistics) UplinkTXPower() byte { return s[6] }

// DownlinkRSSI returns the downlink RSSI in -dBm.
func (s LinkStatistics) DownlinkRSSI() byte { return s[7] }

// DownlinkLQ returns the downlink link quality in percent.
func (s LinkStatistics) DownlinkLQ() byte { return s[8] }

// DownlinkSNR returns the downlink SNR in dB.
func (s LinkStatistics) DownlinkSNR() int8 { return int8(s[9]) }

// DeviceSerial is reported in device info frames ("ELRS").
const DeviceSerial uint32 = 0x454C5253

// DeviceInfoPayload builds the payload of a device info frame.
func DeviceInfoPayload(name string, fieldCount byte) []byte {
	p := make([]byte, 0, len(name)+15)
	p = append(p, name...)
	p = append(p, 0)
	p = binary.BigEndian.AppendUint32(p, DeviceSerial)
	p = binary.BigEndian.AppendUint32(p, 0) // hardware version
	p = binary.BigEndian.AppendUint32(p, 0) // software version
	return append(p, fieldCount, 0)
}

// SyncPayload builds the OpenTX mixer sync payload carried by a RadioID frame.
// rate and offset are in 0.1 microsecond units.
func SyncPayload(rate uint32, offset int32) []byte {
	p := make([]byte, 0, 9)
	p = append(p, FrameTypeOpenTXSync)
	p = binary.BigEndian.AppendUint32(p, rate)
	return binary.BigEndian.AppendUint32(p, uint32(offset))
}

// ParseSyncPayload decodes a payload built by SyncPayload.
func ParseSyncPayload(p []byte) (rate uint32, offset int32, ok bool) {
	if len(p) < 9 || p[0] != FrameTypeOpenTXSync {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(p[1:5]), int32(binary.BigEndian.Uint32(p[5:9])), true
}
