package hub

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dila/internal/projector"
	"dila/internal/protocol"
)

// fakeDevice is a minimal projector double for exercising the hub through
// real sessions: it speaks the handshake, answers power and input
// references, and acks any operation.
type fakeDevice struct {
	t  *testing.T
	ln net.Listener

	mu    sync.Mutex
	power string
	input string
	ops   []string
	conns []net.Conn
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeDevice{
		t:     t,
		ln:    ln,
		power: protocol.PowerCodeStandby,
		input: protocol.InputCodeHDMI1,
	}
	go f.accept()
	t.Cleanup(f.close)
	return f
}

func (f *fakeDevice) endpoint() projector.Endpoint {
	addr := f.ln.Addr().(*net.TCPAddr)
	return projector.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

func (f *fakeDevice) close() {
	f.ln.Close()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Close()
	}
	f.conns = nil
}

func (f *fakeDevice) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *fakeDevice) accept() {
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

func (f *fakeDevice) serve(conn net.Conn) {
	defer conn.Close()

	if _, err := conn.Write(protocol.HandshakeGreeting); err != nil {
		return
	}
	reply := make([]byte, len(protocol.HandshakeRequest))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return
	}
	if !bytes.Equal(reply, protocol.HandshakeRequest) {
		conn.Write(protocol.HandshakeNak)
		return
	}
	if _, err := conn.Write(protocol.HandshakeAck); err != nil {
		return
	}

	var buf []byte
	chunk := make([]byte, 256)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)
		for {
			frame, consumed, err := protocol.Decode(buf)
			if errors.Is(err, protocol.ErrNeedMoreData) {
				break
			}
			if err != nil {
				return
			}
			buf = buf[consumed:]
			if !f.handle(conn, frame) {
				return
			}
		}
	}
}

func (f *fakeDevice) handle(conn net.Conn, frame protocol.Frame) bool {
	code := string(frame.Code)
	class := code
	if len(class) > 2 {
		class = class[:2]
	}

	switch frame.Type {
	case protocol.FrameReference:
		var data string
		f.mu.Lock()
		switch code {
		case protocol.QueryPower:
			data = f.power
		case protocol.QueryInput:
			data = f.input
		default:
			data = "0"
		}
		f.mu.Unlock()
		resp := protocol.Encode(protocol.Frame{
			Type: protocol.FrameResponse,
			Code: []byte(class),
			Data: []byte(data),
		})
		_, err := conn.Write(resp)
		return err == nil

	case protocol.FrameOperation:
		f.mu.Lock()
		f.ops = append(f.ops, code)
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
		f.mu.Unlock()
		ack := protocol.Encode(protocol.Frame{Type: protocol.FrameAck, Code: []byte(class)})
		_, err := conn.Write(ack)
		return err == nil
	}
	return false
}

// deadEndpoint returns an endpoint nothing listens on.
func deadEndpoint(t *testing.T) projector.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	return projector.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}
