package projector

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"dila/internal/protocol"
)

type fakeMode int

const (
	fakeNormal fakeMode = iota
	fakeSilent          // never answer commands
	fakeDrop            // close the connection on the first command
	fakeGarbage         // answer with a malformed frame
)

// fakeProjector is an in-process device speaking the real wire protocol:
// greeting, optional password check, then command traffic.
type fakeProjector struct {
	t  *testing.T
	ln net.Listener

	password string
	greeting []byte

	mu             sync.Mutex
	conns          []net.Conn
	power          string
	input          string
	mode           fakeMode
	replyDelay     time.Duration
	received       []string
	outstanding    int
	maxOutstanding int
}

func newFakeProjector(t *testing.T) *fakeProjector {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	f := &fakeProjector{
		t:        t,
		ln:       ln,
		greeting: protocol.HandshakeGreeting,
		power:    protocol.PowerCodeStandby,
		input:    protocol.InputCodeHDMI1,
	}
	go f.acceptLoop()
	t.Cleanup(f.close)
	return f
}

func (f *fakeProjector) close() {
	f.ln.Close()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.conns {
		conn.Close()
	}
	f.conns = nil
}

func (f *fakeProjector) endpoint() Endpoint {
	host, portStr, _ := net.SplitHostPort(f.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return Endpoint{Host: host, Port: port, Password: f.password}
}

func (f *fakeProjector) setPower(code string) {
	f.mu.Lock()
	f.power = code
	f.mu.Unlock()
}

func (f *fakeProjector) setMode(m fakeMode) {
	f.mu.Lock()
	f.mode = m
	f.mu.Unlock()
}

func (f *fakeProjector) setReplyDelay(d time.Duration) {
	f.mu.Lock()
	f.replyDelay = d
	f.mu.Unlock()
}

func (f *fakeProjector) receivedCodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeProjector) maxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOutstanding
}

func (f *fakeProjector) acceptLoop() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		go f.serve(conn)
	}
}

func (f *fakeProjector) serve(conn net.Conn) {
	defer conn.Close()

	if _, err := conn.Write(f.greeting); err != nil {
		return
	}

	expected := protocol.HandshakeReply(f.password)
	reply := make([]byte, len(expected))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return
	}
	if string(reply) != string(expected) {
		conn.Write(protocol.HandshakeNak)
		return
	}
	if _, err := conn.Write(protocol.HandshakeAck); err != nil {
		return
	}

	buf := make([]byte, 0, 256)
	tmp := make([]byte, 256)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			return
		}
		buf = append(buf, tmp[:n]...)
		for {
			frame, consumed, err := protocol.Decode(buf)
			if err != nil {
				if err == protocol.ErrNeedMoreData {
					break
				}
				return
			}
			buf = buf[consumed:]
			if !f.handleFrame(conn, frame) {
				return
			}
		}
	}
}

func (f *fakeProjector) handleFrame(conn net.Conn, frame protocol.Frame) bool {
	f.mu.Lock()
	f.received = append(f.received, string(frame.Code))
	f.outstanding++
	if f.outstanding > f.maxOutstanding {
		f.maxOutstanding = f.outstanding
	}
	mode := f.mode
	delay := f.replyDelay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.outstanding--
		f.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	switch mode {
	case fakeSilent:
		return true
	case fakeDrop:
		return false
	case fakeGarbage:
		conn.Write([]byte{0x99, 0x42, protocol.Terminator})
		return true
	}

	code := string(frame.Code)
	switch frame.Type {
	case protocol.FrameReference:
		conn.Write(protocol.Encode(protocol.Frame{
			Type: protocol.FrameResponse,
			Code: []byte(code[:2]),
			Data: []byte(f.answer(code)),
		}))
	case protocol.FrameOperation:
		f.apply(code)
		conn.Write(protocol.Encode(protocol.Frame{
			Type: protocol.FrameAck,
			Code: []byte(code[:2]),
		}))
	}
	return true
}

func (f *fakeProjector) answer(code string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch code {
	case protocol.QueryPower:
		return f.power
	case protocol.QueryInput:
		return f.input
	case protocol.QueryPictureMode:
		return "01"
	case protocol.QueryLowLatency:
		return "0"
	case protocol.QueryMask:
		return "2"
	case protocol.QueryLampPower:
		return "0"
	case protocol.QueryLensAperture:
		return "0"
	case protocol.QueryModel:
		return "ILAFPJ -- B5A2"
	}
	return "?"
}

func (f *fakeProjector) apply(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch code {
	case protocol.OpPowerOn:
		f.power = protocol.PowerCodeOn
	case protocol.OpPowerOff:
		f.power = protocol.PowerCodeCooling
	case protocol.OpInput1, protocol.RemoteHDMI1:
		f.input = protocol.InputCodeHDMI1
	case protocol.OpInput2, protocol.RemoteHDMI2:
		f.input = protocol.InputCodeHDMI2
	}
}
