// Package serialutil finds and opens the serial consoles of attached
// microcontroller boards.
package serialutil

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Type identifies a kind of serial device.
type Type string

// The device types that search can detect.
const (
	TypeUnknown      = Type("unknown")
	TypeMicroconsole = Type("microconsole")
)

// Description describes a discovered serial device.
type Description struct {
	Type Type
	Path string
}

// SearchFilter restricts what search should return.
type SearchFilter struct {
	Type Type
}

// Search attempts to find all devices discoverable on the serial ports that
// match the given filter.
func Search(filter SearchFilter) ([]Description, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "cannot enumerate serial ports")
	}
	var descs []Description
	for _, path := range ports {
		t := TypeUnknown
		if strings.Contains(path, "ttyACM") || strings.Contains(path, "ttyUSB") ||
			strings.Contains(path, "usbmodem") {
			t = TypeMicroconsole
		}
		if filter.Type != "" && filter.Type != t {
			continue
		}
		descs = append(descs, Description{Type: t, Path: path})
	}
	return descs, nil
}

// Open opens the console at the given path at 115200-8N1.
func Open(path string) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open serial console (%s)", path)
	}
	return port, nil
}

// SetDTR toggles the data terminal ready line on an open port, used to reset
// boards whose reset pin is wired to DTR.
func SetDTR(port io.ReadWriteCloser, asserted bool) error {
	p, ok := port.(serial.Port)
	if !ok {
		return errors.New("port does not support modem control lines")
	}
	return p.SetDTR(asserted)
}
