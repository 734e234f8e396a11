package crsf

// ParseStatus tells what one parsing step produced.
type ParseStatus int

const (
	// ParseNone means more bytes are needed.
	ParseNone ParseStatus = iota
	// ParseFrame means a frame with a valid crc is complete.
	ParseFrame
	// ParseBadCRC means a frame is complete but its crc mismatches.
	ParseBadCRC
	// ParseAbort means the frame being received was dropped because of an
	// impossible length. It is not counted as a bad packet.
	ParseAbort
)

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	Status ParseStatus
	Frame  Frame
}

type parseState int

const (
	stateSync   parseState = iota // waiting for sync or address byte
	stateLength                   // waiting for length byte
	stateBody                     // receiving type through crc
)

// Parser assembles frames from a byte stream.
type Parser struct {
	// Address is accepted as a frame start in addition to SyncByte.
	Address byte

	state    parseState
	buf      [MaxPacketLen]byte
	pos      int
	frameLen int
}

// NewParser creates a Parser accepting frames addressed to addr.
func NewParser(addr byte) *Parser {
	return &Parser{Address: addr}
}

// Reset drops any partial frame and waits for a sync byte.
func (p *Parser) Reset() {
	p.state, p.pos, p.frameLen = stateSync, 0, 0
}

// Active tells whether a frame is being received.
func (p *Parser) Active() bool {
	return p.state != stateSync
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case stateSync:
		if b == SyncByte || (p.Address != AddrBroadcast && b == p.Address) {
			p.buf[0], p.pos = b, 1
			p.state = stateLength
		}
	case stateLength:
		if b < 2 || int(b) > MaxPacketLen {
			p.Reset()
			pr.Status = ParseAbort
			return
		}
		p.buf[1], p.pos, p.frameLen = b, 2, int(b)
		p.state = stateBody
	case stateBody:
		if p.pos >= MaxPacketLen {
			p.Reset()
			pr.Status = ParseAbort
			return
		}
		p.buf[p.pos] = b
		p.pos++
		if p.pos >= p.frameLen+2 {
			frame := make(Frame, p.pos)
			copy(frame, p.buf[:p.pos])
			p.Reset()
			if CRC8(frame[2:len(frame)-1]) == frame.CRC() {
				pr.Status, pr.Frame = ParseFrame, frame
			} else {
				pr.Status = ParseBadCRC
			}
		}
	}
	return
}
