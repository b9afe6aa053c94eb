package serialmux

import (
	"io"
	"time"
)

// SerialPorter is the minimal port surface a SerialMux needs.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter is a port whose reads can be bounded.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}
