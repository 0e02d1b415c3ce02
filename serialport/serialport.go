// Package serialport adapts a physical serial device to the bridge.Channel
// interface using go.bug.st/serial.
package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/bridge"
)

// Port is an open serial device. Reads block until at least one byte
// arrives; Close unblocks a pending read.
type Port struct {
	serial.Port

	name string
}

var _ bridge.Channel = (*Port)(nil)

// Open opens the serial device in 8N1 mode at the given baud rate.
func Open(device string, baudRate int) (*Port, error) {
	if baudRate <= 0 {
		return nil, fmt.Errorf("serialport: baud rate %d must be positive", baudRate)
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", device, err)
	}

	return &Port{Port: p, name: device}, nil
}

// Name returns the device name the port was opened with.
func (p *Port) Name() string {
	return p.name
}

// List returns the device names of the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list ports: %w", err)
	}

	return ports, nil
}
