// ABOUTME: Serial port link using go.bug.st/serial
// ABOUTME: 8N1 with a short read timeout so receive loops can poll
package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaud matches the link rate the device firmware runs at.
const DefaultBaud = 921600

// OpenSerial opens the named port as a Link. Reads time out after
// PollInterval and report (0, nil), which the frame parser tolerates.
func OpenSerial(device string, baud int) (Link, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	if err := port.SetReadTimeout(PollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}
