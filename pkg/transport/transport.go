package transport

import (
	"errors"
	"io"
)

var (
	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")
	// ErrNoData indicates a read found no buffered input.
	ErrNoData = errors.New("no data available")
)

// Port is the byte transport to the handset.
// Reads never block: Available tells how many bytes can be read.
type Port interface {
	io.Writer
	// Available returns the number of buffered input bytes.
	Available() int
	// ReadByte returns one buffered byte or ErrNoData.
	ReadByte() (byte, error)
	// Read reads up to len(p) buffered bytes.
	Read(p []byte) (int, error)
	// Flush blocks until written bytes left the transmitter.
	Flush() error
	// FlushInput discards buffered input.
	FlushInput()
	// SetBaudRate reconfigures the line speed.
	SetBaudRate(baud int) error
}

// HalfDuplex is implemented by ports sharing one wire between directions.
// EnableRX also discards the echo of what was sent.
type HalfDuplex interface {
	EnableTX() error
	EnableRX() error
}

// Notifier is implemented by ports calling back when input arrives.
type Notifier interface {
	SetOnData(fn func())
}
