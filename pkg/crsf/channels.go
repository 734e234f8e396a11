package crsf

// NumChannels is the number of channels in an RC channels frame.
const NumChannels = 16

// Channel value range.
const (
	ChannelMin uint16 = 172
	ChannelMid uint16 = 992
	ChannelMax uint16 = 1811
)

// ChannelData holds 11-bit channel values.
type ChannelData [NumChannels]uint16

// UnpackChannels decodes 16 little-endian packed 11-bit values.
// p must hold at least RCChannelsLen bytes.
func UnpackChannels(p []byte) (ch ChannelData) {
	var acc uint32
	var bits uint
	idx := 0
	for _, b := range p[:RCChannelsLen] {
		acc |= uint32(b) << bits
		bits += 8
		for bits >= 11 && idx < NumChannels {
			ch[idx] = uint16(acc & 0x7ff)
			acc >>= 11
			bits -= 11
			idx++
		}
	}
	return
}

// Pack encodes the channels as the RC channels payload.
func (ch ChannelData) Pack() []byte {
	out := make([]byte, 0, RCChannelsLen)
	var acc uint32
	var bits uint
	for _, v := range ch {
		acc |= uint32(v&0x7ff) << bits
		bits += 11
		for bits >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			bits -= 8
		}
	}
	return out
}

// ChannelToMicros converts a channel value to a pulse width in microseconds.
func ChannelToMicros(v uint16) int {
	return (int(v)-int(ChannelMid))*5/8 + 1500
}
