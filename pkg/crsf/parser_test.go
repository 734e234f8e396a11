package crsf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type parserTestSequence struct {
	in    []byte
	final ParseResult
}

type parserTestSequenceBuilder struct {
	seq []parserTestSequence
}

func parserTestSequences() *parserTestSequenceBuilder {
	return &parserTestSequenceBuilder{}
}

func (b *parserTestSequenceBuilder) on(in ...byte) *parserTestSequenceBuilder {
	b.seq = append(b.seq, parserTestSequence{in: in})
	return b
}

func (b *parserTestSequenceBuilder) frame(f Frame) *parserTestSequenceBuilder {
	return b.on(f...).final(ParseResult{Status: ParseFrame, Frame: f})
}

func (b *parserTestSequenceBuilder) final(pr ParseResult) *parserTestSequenceBuilder {
	b.seq[len(b.seq)-1].final = pr
	return b
}

func (b *parserTestSequenceBuilder) badCRC() *parserTestSequenceBuilder {
	return b.final(ParseResult{Status: ParseBadCRC})
}

func (b *parserTestSequenceBuilder) abort() *parserTestSequenceBuilder {
	return b.final(ParseResult{Status: ParseAbort})
}

func (b *parserTestSequenceBuilder) build() []parserTestSequence {
	return b.seq
}

func corrupt(f Frame) []byte {
	out := append([]byte(nil), f...)
	out[len(out)-1] ^= 0xff
	return out
}

func TestParser(t *testing.T) {
	rc := NewFrame(SyncByte, FrameTypeRCChannelsPacked, make([]byte, RCChannelsLen))
	ping := NewExtendedFrame(AddrCRSFTransmitter, FrameTypeDevicePing, AddrBroadcast, AddrRadioTransmitter, nil)
	largest := NewFrame(SyncByte, FrameTypeMspWrite, make([]byte, MaxPayloadLen-2))

	testCases := []struct {
		name string
		seq  []parserTestSequence
	}{
		{
			name: "single frame",
			seq:  parserTestSequences().frame(rc).build(),
		},
		{
			name: "frame addressed to transmitter",
			seq:  parserTestSequences().frame(ping).build(),
		},
		{
			name: "skip noise before sync",
			seq: parserTestSequences().
				on(0x01, 0x02, 0xff, 0x00).
				frame(rc).
				build(),
		},
		{
			name: "back to back",
			seq:  parserTestSequences().frame(rc).frame(ping).frame(rc).build(),
		},
		{
			name: "crc mismatch",
			seq: parserTestSequences().
				on(corrupt(rc)...).badCRC().
				frame(rc).
				build(),
		},
		{
			name: "length too large",
			seq: parserTestSequences().
				on(SyncByte, MaxPacketLen+1).abort().
				frame(ping).
				build(),
		},
		{
			name: "length too small",
			seq: parserTestSequences().
				on(SyncByte, 1).abort().
				frame(rc).
				build(),
		},
		{
			name: "largest frame",
			seq:  parserTestSequences().frame(largest).build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parser := NewParser(AddrCRSFTransmitter)
			for n, s := range tc.seq {
				var pr ParseResult
				for i, b := range s.in {
					pr = parser.Parse(b)
					if i+1 < len(s.in) {
						require.Equalf(t, ParseNone, pr.Status, "seq[%d][%d] unexpected status", n, i)
					}
				}
				require.Equalf(t, s.final, pr, "seq[%d] final mismatch", n)
			}
		})
	}
}

func TestParserOverflow(t *testing.T) {
	parser := NewParser(AddrCRSFTransmitter)
	var pr ParseResult
	in := append([]byte{SyncByte, MaxPacketLen}, make([]byte, MaxPacketLen)...)
	aborted := 0
	for _, b := range in {
		if pr = parser.Parse(b); pr.Status == ParseAbort {
			aborted++
		}
		require.NotEqual(t, ParseFrame, pr.Status)
		require.NotEqual(t, ParseBadCRC, pr.Status)
	}
	require.Equal(t, 1, aborted)
}

func TestParserReset(t *testing.T) {
	parser := NewParser(0)
	rc := NewFrame(SyncByte, FrameTypeRCChannelsPacked, make([]byte, RCChannelsLen))
	for _, b := range rc[:5] {
		parser.Parse(b)
	}
	require.True(t, parser.Active())
	parser.Reset()
	require.False(t, parser.Active())
	var pr ParseResult
	for _, b := range rc {
		pr = parser.Parse(b)
	}
	require.Equal(t, ParseFrame, pr.Status)
	require.Equal(t, rc, pr.Frame)
}
