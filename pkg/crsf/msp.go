package crsf

// Encapsulated MSP.
const (
	// MspMaxPayload is the largest MSP payload in one frame.
	MspMaxPayload = 4
	// MspHeaderV1Start is version 1 with the start flag, sequence 0.
	MspHeaderV1Start byte = 0x30
	// MspBufferLen is the largest MSP message relayed over the air.
	MspBufferLen = 65
)

// MSP functions.
const (
	MspSetRxConfig byte = 45
	// MspElrsModelID is the first payload byte of MspSetRxConfig carrying
	// the model id.
	MspElrsModelID byte = 0x6E
)

// MspCRC is the XOR of data.
func MspCRC(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
	}
	return crc
}

// NewMspWriteFrame builds a broadcast MSP write frame addressed to the
// flight controller.
func NewMspWriteFrame(function byte, payload []byte) (Frame, error) {
	if len(payload) > MspMaxPayload {
		return nil, ErrMspTooLarge
	}
	p := make([]byte, 0, len(payload)+4)
	p = append(p, MspHeaderV1Start, byte(len(payload)), function)
	p = append(p, payload...)
	p = append(p, MspCRC(p[1:]))
	return NewExtendedFrame(AddrBroadcast, FrameTypeMspWrite, AddrFlightController, AddrRadioTransmitter, p), nil
}
