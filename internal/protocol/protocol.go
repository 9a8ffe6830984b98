package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// Constants of the D-ILA external control protocol. All command traffic
// shares a one-byte header, the two-byte unit ID 0x89 0x01 and a 0x0A
// terminator. The handshake before command traffic is a plain token
// exchange (PJ_OK / PJREQ / PJACK).
const (
	// Default TCP port of the projector's external control service
	Port = 20554

	// Frame headers
	HeaderOperation = 0x21 // '!' write command, acknowledged only
	HeaderReference = 0x3F // '?' read command, acknowledged then answered
	HeaderAck       = 0x06 // device acknowledgement
	HeaderResponse  = 0x40 // '@' device answer to a reference

	// Terminator ends every frame
	Terminator = 0x0A

	// MaxFrameLen bounds a single frame. Real responses are short (the
	// longest documented is the model name at ~20 bytes); anything larger
	// means the stream is corrupt.
	MaxFrameLen = 64

	// Handshake password padding: PJREQ_<password> NUL-padded to this many
	// password bytes on NZ-series units.
	passwordFieldLen = 10
)

// UnitID prefixes every command frame.
var UnitID = []byte{0x89, 0x01}

// Handshake tokens.
var (
	HandshakeGreeting = []byte("PJ_OK")
	HandshakeRequest  = []byte("PJREQ")
	HandshakeAck      = []byte("PJACK")
	HandshakeNak      = []byte("PJNAK")
)

var (
	ErrNeedMoreData = errors.New("incomplete frame")
	ErrMalformed    = errors.New("malformed frame")
	ErrFrameTooLong = errors.New("frame exceeds maximum length")
)

// FrameType identifies the four frame categories on the wire.
type FrameType byte

const (
	FrameOperation FrameType = HeaderOperation
	FrameReference FrameType = HeaderReference
	FrameAck       FrameType = HeaderAck
	FrameResponse  FrameType = HeaderResponse
)

// String returns a readable name for logging.
func (t FrameType) String() string {
	switch t {
	case FrameOperation:
		return "operation"
	case FrameReference:
		return "reference"
	case FrameAck:
		return "ack"
	case FrameResponse:
		return "response"
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Frame is one complete protocol message. For outgoing frames Code carries
// the full command string. Incoming acks carry the two-character command
// class in Code; incoming responses carry the class in Code and the value
// in Data.
type Frame struct {
	Type FrameType
	Code []byte
	Data []byte
}

// Encode serializes the frame into the exact byte sequence for the wire.
func Encode(f Frame) []byte {
	buf := make([]byte, 0, 3+len(f.Code)+len(f.Data)+1)
	buf = append(buf, byte(f.Type))
	buf = append(buf, UnitID...)
	buf = append(buf, f.Code...)
	buf = append(buf, f.Data...)
	buf = append(buf, Terminator)
	return buf
}

// EncodeOperation frames a write command.
func EncodeOperation(code string) []byte {
	return Encode(Frame{Type: FrameOperation, Code: []byte(code)})
}

// EncodeReference frames a read command.
func EncodeReference(code string) []byte {
	return Encode(Frame{Type: FrameReference, Code: []byte(code)})
}

// Decode attempts to extract one complete frame from buf. It returns the
// frame and the number of bytes consumed. When buf holds only part of a
// frame the error is ErrNeedMoreData and the caller should read more bytes
// and retry. Any other error means the stream cannot be resynchronized and
// the connection must be dropped.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, ErrNeedMoreData
	}

	switch buf[0] {
	case HeaderOperation, HeaderReference, HeaderAck, HeaderResponse:
	default:
		return Frame{}, 0, fmt.Errorf("%w: unexpected header 0x%02x", ErrMalformed, buf[0])
	}

	end := bytes.IndexByte(buf, Terminator)
	if end < 0 {
		if len(buf) > MaxFrameLen {
			return Frame{}, 0, ErrFrameTooLong
		}
		return Frame{}, 0, ErrNeedMoreData
	}
	if end > MaxFrameLen {
		return Frame{}, 0, ErrFrameTooLong
	}

	// Header(1) + unit ID(2) + command class(2) before the terminator
	if end < 5 {
		return Frame{}, 0, fmt.Errorf("%w: frame too short", ErrMalformed)
	}
	if !bytes.Equal(buf[1:3], UnitID) {
		return Frame{}, 0, fmt.Errorf("%w: bad unit id % x", ErrMalformed, buf[1:3])
	}

	f := Frame{Type: FrameType(buf[0])}
	switch f.Type {
	case FrameAck:
		// Acks echo only the two-character command class
		if end != 5 {
			return Frame{}, 0, fmt.Errorf("%w: ack carries %d extra bytes", ErrMalformed, end-5)
		}
		f.Code = append([]byte(nil), buf[3:5]...)
	case FrameResponse:
		f.Code = append([]byte(nil), buf[3:5]...)
		f.Data = append([]byte(nil), buf[5:end]...)
	default:
		// Operations and references carry the full command string
		f.Code = append([]byte(nil), buf[3:end]...)
	}
	return f, end + 1, nil
}

// HandshakeReply builds the client's answer to the PJ_OK greeting. With an
// empty password this is the bare PJREQ token; otherwise the password is
// appended after an underscore and NUL-padded, which is what networked
// NZ-series units expect.
func HandshakeReply(password string) []byte {
	if password == "" {
		return append([]byte(nil), HandshakeRequest...)
	}
	buf := make([]byte, 0, len(HandshakeRequest)+1+passwordFieldLen)
	buf = append(buf, HandshakeRequest...)
	buf = append(buf, '_')
	buf = append(buf, password...)
	for len(buf) < len(HandshakeRequest)+1+passwordFieldLen {
		buf = append(buf, 0x00)
	}
	return buf
}

// AckMatches reports whether an ack frame acknowledges the given command.
// The device echoes only the two-character command class.
func AckMatches(f Frame, code string) bool {
	return f.Type == FrameAck && len(code) >= 2 && bytes.Equal(f.Code, []byte(code[:2]))
}

// ResponseMatches reports whether a response frame answers the given
// reference command.
func ResponseMatches(f Frame, code string) bool {
	return f.Type == FrameResponse && len(code) >= 2 && bytes.Equal(f.Code, []byte(code[:2]))
}
