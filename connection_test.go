package amqpgo

import (
	"bufio"
	"encoding/binary"
	"net"
	"testing"

	"github.com/kstaniek/amqpgo/internal/connio"
	"github.com/kstaniek/amqpgo/internal/transport"
	"github.com/kstaniek/amqpgo/internal/wire"
)

func shortStr(s string) []byte {
	return append([]byte{byte(len(s))}, []byte(s)...)
}

func serverFrame(channel uint16, id uint32, args []byte) []byte {
	classID := uint16(id >> 16)
	methodID := uint16(id)
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], classID)
	binary.BigEndian.PutUint16(hdr[2:4], methodID)
	return wire.EncodeFrame(wire.FrameMethod, channel, append(hdr[:], args...))
}

func connectionStartArgs() []byte {
	return []byte{0, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
}

func connectionTuneArgs(channelMax uint16, frameMax uint32, heartbeat uint16) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], channelMax)
	binary.BigEndian.PutUint32(buf[2:6], frameMax)
	binary.BigEndian.PutUint16(buf[6:8], heartbeat)
	return buf
}

func connectionOpenOkArgs(knownHosts string) []byte {
	return shortStr(knownHosts)
}

func newTestConnection(conn net.Conn) *Connection {
	tr := transport.Adopt(conn)
	return &Connection{tr: tr, state: connio.NewState(tr)}
}

// TestConnectionEndToEndHandshakeThenRPC runs Login over an adopted pipe,
// then a SimpleRPC round trip on channel 0 during which an unrelated
// heartbeat frame arrives first and is deferred rather than accepted.
func TestConnectionEndToEndHandshakeThenRPC(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		br := bufio.NewReader(server)
		var hdr [8]byte
		if _, err := br.Read(hdr[:]); err != nil {
			done <- err
			return
		}
		if _, err := server.Write(serverFrame(0, wire.ConnectionStart, connectionStartArgs())); err != nil {
			done <- err
			return
		}
		if _, err := wire.Decode(br); err != nil {
			done <- err
			return
		}
		if _, err := server.Write(serverFrame(0, wire.ConnectionTune, connectionTuneArgs(0, 0, 0))); err != nil {
			done <- err
			return
		}
		if _, err := wire.Decode(br); err != nil {
			done <- err
			return
		}
		if _, err := wire.Decode(br); err != nil { // Open
			done <- err
			return
		}
		if _, err := server.Write(serverFrame(0, wire.ConnectionOpenOk, connectionOpenOkArgs(""))); err != nil {
			done <- err
			return
		}

		// Now play a channel-0 RPC: deliver an unrelated heartbeat frame
		// first (must be deferred by the client), then the real reply.
		if _, err := wire.Decode(br); err != nil { // the client's request
			done <- err
			return
		}
		if _, err := server.Write(wire.EncodeFrame(wire.FrameHeartbeat, 0, nil)); err != nil {
			done <- err
			return
		}
		if _, err := server.Write(serverFrame(0, wire.ConnectionCloseOk, nil)); err != nil {
			done <- err
			return
		}
		done <- nil
	}()

	conn := newTestConnection(client)
	tuning, err := conn.Login("/", PlainCredentials{Username: "guest", Password: "guest"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if conn.Tuning() != tuning {
		t.Fatalf("Tuning() mismatch after Login")
	}

	reply := conn.SimpleRPC(0, wire.ConnectionCloseOk, nil, []uint32{wire.ConnectionCloseOk})
	if reply.Kind != Normal {
		t.Fatalf("SimpleRPC Kind = %v, err=%v", reply.Kind, reply.Err)
	}
	if conn.LastRPCReply().Kind != Normal {
		t.Fatalf("LastRPCReply not recorded")
	}

	if err := <-done; err != nil {
		t.Fatalf("fake broker: %v", err)
	}
}

func TestConnectionCloseReleasesTransport(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := newTestConnection(client)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.SendHeader(); err == nil {
		t.Fatalf("expected SendHeader to fail after Close")
	}
}
