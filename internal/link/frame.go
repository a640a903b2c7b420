// ABOUTME: Wire frame definitions for the serial audio protocol
// ABOUTME: Sync bytes, command set, checksum, and frame encoding
package link

import "fmt"

const (
	// SyncByte0 and SyncByte1 open every frame
	SyncByte0 = 0xAA
	SyncByte1 = 0x55

	// MaxPayload is the largest frame payload carried on the wire
	MaxPayload = 2048

	// headerSize covers sync(2) + cmd(1) + length(2)
	headerSize = 5
)

// Command identifies a protocol frame
type Command byte

const (
	CmdStartRecord Command = 0x01
	CmdStopRecord  Command = 0x02
	CmdAudioData   Command = 0x03
	CmdStartPlay   Command = 0x04
	CmdStopPlay    Command = 0x05
	CmdHandshake   Command = 0x06
	CmdAck         Command = 0x07
	CmdSetFormat   Command = 0x08
)

// String returns the command name for logging
func (c Command) String() string {
	switch c {
	case CmdStartRecord:
		return "start-record"
	case CmdStopRecord:
		return "stop-record"
	case CmdAudioData:
		return "audio-data"
	case CmdStartPlay:
		return "start-play"
	case CmdStopPlay:
		return "stop-play"
	case CmdHandshake:
		return "handshake"
	case CmdAck:
		return "ack"
	case CmdSetFormat:
		return "set-format"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(c))
	}
}

// Checksum XORs the command, both length bytes, and the payload
func Checksum(cmd Command, payload []byte) byte {
	sum := byte(cmd)
	sum ^= byte(len(payload) & 0xFF)
	sum ^= byte(len(payload) >> 8)
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// Encode builds one complete wire frame so the caller can hand it to the
// transport as a single write
func Encode(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("payload %d exceeds max %d", len(payload), MaxPayload)
	}

	frame := make([]byte, 0, headerSize+len(payload)+1)
	frame = append(frame,
		SyncByte0,
		SyncByte1,
		byte(cmd),
		byte(len(payload)&0xFF),
		byte(len(payload)>>8),
	)
	frame = append(frame, payload...)
	frame = append(frame, Checksum(cmd, payload))
	return frame, nil
}
