package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerialMux opens the serial device at path and wraps it in a SerialMux
// named name.
func OpenSerialMux(name, path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", name, path, err)
	}

	return NewSerialMux[serial.Port](name, port), nil
}
