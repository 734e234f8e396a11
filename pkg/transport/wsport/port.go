package wsport

import (
	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/crsflink/pkg/transport"
)

// Port carries the byte stream in binary websocket messages, e.g. to a
// handset simulator.
type Port struct {
	*transport.Stream

	conn *websocket.Conn
}

// Dial connects to a websocket server.
func Dial(url, origin string) (*Port, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn *websocket.Conn) *Port {
	conn.PayloadType = websocket.BinaryFrame
	return &Port{Stream: transport.NewStream(conn), conn: conn}
}

// Close closes the connection.
func (p *Port) Close() error {
	return p.conn.Close()
}

// Write sends p as one binary message.
func (p *Port) Write(b []byte) (int, error) {
	if err := websocket.Message.Send(p.conn, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// SetBaudRate implements transport.Port. The virtual line follows any rate.
func (p *Port) SetBaudRate(baud int) error {
	glog.V(2).Infof("websocket: baud %d", baud)
	return nil
}
