package transport

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/crsflink/pkg/framework"
)

// DefaultInputLimit caps buffered input of a Stream.
const DefaultInputLimit = 4096

// Stream adapts a blocking io.ReadWriter into a Port. Run reads in the
// background into a buffer which Available/Read consume.
type Stream struct {
	ReadWriter io.ReadWriter
	// OnData is called from the reader after new bytes are buffered.
	OnData func()
	// InputLimit drops input arriving while this many bytes are buffered.
	InputLimit int

	lock   sync.Mutex
	input  bytes.Buffer
	closed bool
}

// NewStream creates a Stream.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{ReadWriter: rw, InputLimit: DefaultInputLimit}
}

// Run implements framework.Runnable. When ReadWriter is an io.Closer it is
// closed on return, otherwise cancellation waits for the pending Read.
func (s *Stream) Run(ctx context.Context) error {
	if closer, ok := s.ReadWriter.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, s.readLoop)
	}
	return fx.RunWithContextCancel(ctx, nil, s.readLoop)
}

func (s *Stream) readLoop() error {
	buf := make([]byte, 256)
	for {
		n, err := s.ReadWriter.Read(buf)
		if n > 0 {
			s.Feed(buf[:n])
		}
		if err != nil {
			s.lock.Lock()
			s.closed = true
			s.lock.Unlock()
			return err
		}
	}
}

// Feed buffers received bytes.
func (s *Stream) Feed(p []byte) {
	s.lock.Lock()
	limit := s.InputLimit
	if limit <= 0 {
		limit = DefaultInputLimit
	}
	if s.input.Len()+len(p) > limit {
		glog.Warningf("transport: input overrun, dropped %d bytes", len(p))
		s.lock.Unlock()
		return
	}
	s.input.Write(p)
	notify := s.OnData
	s.lock.Unlock()
	if notify != nil {
		notify()
	}
}

// SetOnData replaces OnData while the reader runs.
func (s *Stream) SetOnData(fn func()) {
	s.lock.Lock()
	s.OnData = fn
	s.lock.Unlock()
}

// Available implements Port.
func (s *Stream) Available() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.input.Len()
}

// ReadByte implements Port.
func (s *Stream) ReadByte() (byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.input.Len() == 0 {
		if s.closed {
			return 0, ErrClosed
		}
		return 0, ErrNoData
	}
	return s.input.ReadByte()
}

// Read implements Port.
func (s *Stream) Read(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.input.Len() == 0 {
		if s.closed {
			return 0, ErrClosed
		}
		return 0, nil
	}
	return s.input.Read(p)
}

// Write implements Port.
func (s *Stream) Write(p []byte) (int, error) {
	return s.ReadWriter.Write(p)
}

// Flush implements Port. Streams have no output buffer of their own.
func (s *Stream) Flush() error {
	return nil
}

// FlushInput implements Port.
func (s *Stream) FlushInput() {
	s.lock.Lock()
	s.input.Reset()
	s.lock.Unlock()
}

// SetBaudRate implements Port. Streams have no line speed.
func (s *Stream) SetBaudRate(baud int) error {
	glog.V(4).Infof("transport: stream ignores baud %d", baud)
	return nil
}
