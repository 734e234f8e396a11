package crsf

// Frame is a complete frame as on the wire:
//
//	[address][length][type][(destination)(origin)][payload][crc]
//
// length counts type through crc. Destination and origin are present for
// extended frames, whose type is DevicePing or above.
type Frame []byte

// Address returns the first byte.
func (f Frame) Address() byte {
	return f[0]
}

// Len returns the length byte.
func (f Frame) Len() int {
	return int(f[1])
}

// Type returns the frame type.
func (f Frame) Type() byte {
	return f[2]
}

// IsExtended tells whether destination and origin are present.
func (f Frame) IsExtended() bool {
	return len(f) >= ExtOverhead && IsExtendedType(f.Type())
}

// Dest returns the destination of an extended frame.
func (f Frame) Dest() byte {
	return f[3]
}

// Origin returns the origin of an extended frame.
func (f Frame) Origin() byte {
	return f[4]
}

// Payload returns the bytes between the header and the crc.
func (f Frame) Payload() []byte {
	if f.IsExtended() {
		return f[ExtHeaderLen : len(f)-1]
	}
	return f[3 : len(f)-1]
}

// CRC returns the last byte.
func (f Frame) CRC() byte {
	return f[len(f)-1]
}

// Valid checks the length byte and the crc.
func (f Frame) Valid() bool {
	if len(f) < 4 || f.Len()+2 != len(f) {
		return false
	}
	return CRC8(f[2:len(f)-1]) == f.CRC()
}

// IsExtendedType tells whether frames of type t carry destination and origin.
func IsExtendedType(t byte) bool {
	return t >= FrameTypeDevicePing
}

// AppendFrame appends a frame to dst.
func AppendFrame(dst []byte, addr, frameType byte, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, addr, byte(len(payload)+2), frameType)
	dst = append(dst, payload...)
	return append(dst, CRC8(dst[start+2:]))
}

// AppendExtendedFrame appends an extended frame to dst.
func AppendExtendedFrame(dst []byte, addr, frameType, dest, orig byte, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, addr, byte(len(payload)+4), frameType, dest, orig)
	dst = append(dst, payload...)
	return append(dst, CRC8(dst[start+2:]))
}

// NewFrame builds a frame.
func NewFrame(addr, frameType byte, payload []byte) Frame {
	return AppendFrame(make([]byte, 0, len(payload)+4), addr, frameType, payload)
}

// NewExtendedFrame builds an extended frame.
func NewExtendedFrame(addr, frameType, dest, orig byte, payload []byte) Frame {
	return AppendExtendedFrame(make([]byte, 0, len(payload)+ExtOverhead), addr, frameType, dest, orig, payload)
}
