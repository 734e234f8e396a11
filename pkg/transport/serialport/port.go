package serialport

import (
	"fmt"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/crsflink/pkg/transport"
)

// Config describes the serial line to the handset.
type Config struct {
	Device string
	Baud   int
	// HalfDuplex drives RTS high while transmitting, for single-wire
	// adapters with a direction input.
	HalfDuplex bool
}

// Port is a serial port implementing transport.Port.
type Port struct {
	*transport.Stream

	serial serial.Port
	conf   Config
}

// Open opens the serial device.
func Open(conf Config) (*Port, error) {
	sp, err := serial.Open(conf.Device, &serial.Mode{
		BaudRate: conf.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Device, err)
	}
	p := &Port{serial: sp, conf: conf}
	p.Stream = transport.NewStream(sp)
	if conf.HalfDuplex {
		if err := sp.SetRTS(false); err != nil {
			sp.Close()
			return nil, fmt.Errorf("%s: set RTS: %w", conf.Device, err)
		}
	}
	return p, nil
}

// Close closes the device.
func (p *Port) Close() error {
	return p.serial.Close()
}

// Flush implements transport.Port.
func (p *Port) Flush() error {
	return p.serial.Drain()
}

// FlushInput implements transport.Port.
func (p *Port) FlushInput() {
	if err := p.serial.ResetInputBuffer(); err != nil {
		glog.Warningf("%s: reset input: %v", p.conf.Device, err)
	}
	p.Stream.FlushInput()
}

// SetBaudRate implements transport.Port.
func (p *Port) SetBaudRate(baud int) error {
	if err := p.serial.SetMode(&serial.Mode{BaudRate: baud}); err != nil {
		return fmt.Errorf("%s: set baud %d: %w", p.conf.Device, baud, err)
	}
	p.conf.Baud = baud
	glog.V(2).Infof("%s: baud %d", p.conf.Device, baud)
	return nil
}

// EnableTX implements transport.HalfDuplex.
func (p *Port) EnableTX() error {
	if !p.conf.HalfDuplex {
		return nil
	}
	return p.serial.SetRTS(true)
}

// EnableRX implements transport.HalfDuplex.
func (p *Port) EnableRX() error {
	if !p.conf.HalfDuplex {
		return nil
	}
	if err := p.serial.SetRTS(false); err != nil {
		return err
	}
	p.FlushInput()
	return nil
}

// List returns the names of the serial ports found.
func List() ([]string, error) {
	return serial.GetPortsList()
}
