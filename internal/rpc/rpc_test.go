package rpc

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/kstaniek/amqpgo/internal/amqperr"
	"github.com/kstaniek/amqpgo/internal/connio"
	"github.com/kstaniek/amqpgo/internal/transport"
	"github.com/kstaniek/amqpgo/internal/wire"
)

func newRPCFixture(t *testing.T) (transport.Transport, *connio.State, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	tr := transport.Adopt(client)
	return tr, connio.NewState(tr), server
}

// serverFrame hand-builds a method frame the way a broker would send it;
// wire.EncodeMethod only covers methods this client sends, so server->client
// replies used in these tests are assembled directly from the header + args.
func serverFrame(channel uint16, id uint32, args []byte) []byte {
	classID := uint16(id >> 16)
	methodID := uint16(id)
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], classID)
	binary.BigEndian.PutUint16(hdr[2:4], methodID)
	payload := append(hdr[:], args...)
	return wire.EncodeFrame(wire.FrameMethod, channel, payload)
}

func shortStr(s string) []byte {
	return append([]byte{byte(len(s))}, []byte(s)...)
}

func connectionStartArgs() []byte {
	// version major/minor, empty server-properties table, empty
	// mechanisms/locales longstrs.
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

func closeMethodArgs(replyCode uint16, replyText string, classID, methodID uint16) []byte {
	var buf []byte
	var rc [2]byte
	binary.BigEndian.PutUint16(rc[:], replyCode)
	buf = append(buf, rc[:]...)
	buf = append(buf, shortStr(replyText)...)
	var cm [4]byte
	binary.BigEndian.PutUint16(cm[0:2], classID)
	binary.BigEndian.PutUint16(cm[2:4], methodID)
	buf = append(buf, cm[:]...)
	return buf
}

func TestSimpleRPCMatchesExpectedReply(t *testing.T) {
	tr, st, server := newRPCFixture(t)

	go func() {
		_, _ = wire.Decode(server) // drain the request
		_, _ = server.Write(serverFrame(0, wire.ConnectionOpenOk, connectionOpenOkArgs("")))
	}()

	r := SimpleRPC(st, tr, 0, wire.ConnectionOpen,
		wire.ConnectionOpenMethod{VirtualHost: "/", Capabilities: "", Insist: true},
		[]uint32{wire.ConnectionOpenOk})

	if r.Kind != Normal {
		t.Fatalf("Kind = %v, want Normal (err=%v)", r.Kind, r.Err)
	}
	if r.Frame.Method.ID != wire.ConnectionOpenOk {
		t.Fatalf("Frame.Method.ID = %d", r.Frame.Method.ID)
	}
}

func TestSimpleRPCDefersUnrelatedFrames(t *testing.T) {
	tr, st, server := newRPCFixture(t)

	go func() {
		_, _ = wire.Decode(server)
		// an unrelated frame on a different channel arrives first...
		unrelated := serverFrame(5, wire.ChannelClose, closeMethodArgs(200, "bye", 20, 40))
		_, _ = server.Write(unrelated)
		// ...then the real reply.
		_, _ = server.Write(serverFrame(0, wire.ConnectionOpenOk, connectionOpenOkArgs("")))
	}()

	r := SimpleRPC(st, tr, 0, wire.ConnectionOpen,
		wire.ConnectionOpenMethod{VirtualHost: "/"}, []uint32{wire.ConnectionOpenOk})

	if r.Kind != Normal {
		t.Fatalf("Kind = %v, err=%v", r.Kind, r.Err)
	}
	if st.QueueLen() != 1 {
		t.Fatalf("QueueLen() = %d, want 1 deferred frame", st.QueueLen())
	}
}

func TestSimpleRPCChannelCloseTerminatesWait(t *testing.T) {
	tr, st, server := newRPCFixture(t)

	go func() {
		_, _ = wire.Decode(server)
		closeFrame := serverFrame(3, wire.ChannelClose, closeMethodArgs(404, "NOT_FOUND", 20, 40))
		_, _ = server.Write(closeFrame)
	}()

	r := SimpleRPC(st, tr, 3, wire.ConnectionOpen, wire.ConnectionOpenMethod{}, []uint32{wire.ConnectionOpenOk})
	if r.Kind != ServerException {
		t.Fatalf("Kind = %v, want ServerException", r.Kind)
	}
	if err := r.AsError(); err == nil {
		t.Fatalf("AsError() = nil, want non-nil")
	}
}

func TestSimpleRPCConnectionCloseTerminatesWaitOnAnyChannel(t *testing.T) {
	tr, st, server := newRPCFixture(t)

	go func() {
		_, _ = wire.Decode(server)
		closeFrame := serverFrame(0, wire.ConnectionClose, closeMethodArgs(320, "CONNECTION_FORCED", 10, 50))
		_, _ = server.Write(closeFrame)
	}()

	r := SimpleRPC(st, tr, 7, wire.ConnectionOpen, wire.ConnectionOpenMethod{}, []uint32{wire.ConnectionOpenOk})
	if r.Kind != ServerException {
		t.Fatalf("Kind = %v, want ServerException", r.Kind)
	}
}

func TestWaitMethodMismatchClosesTransport(t *testing.T) {
	tr, st, server := newRPCFixture(t)

	go func() {
		_, _ = server.Write(serverFrame(0, wire.ConnectionTune, connectionTuneArgs(0, 0, 0)))
	}()

	_, err := WaitMethod(st, tr, 0, wire.ConnectionStart)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}

	// Transport should now be closed: a further Send must fail.
	if sendErr := tr.Send([]byte("x")); sendErr != amqperr.ErrConnectionClosed {
		t.Fatalf("Send after mismatch = %v, want ErrConnectionClosed", sendErr)
	}
}

func TestWaitMethodExactMatchSucceeds(t *testing.T) {
	tr, st, server := newRPCFixture(t)

	go func() {
		_, _ = server.Write(serverFrame(0, wire.ConnectionStart, connectionStartArgs()))
	}()

	f, err := WaitMethod(st, tr, 0, wire.ConnectionStart)
	if err != nil {
		t.Fatalf("WaitMethod: %v", err)
	}
	if f.Method.ID != wire.ConnectionStart {
		t.Fatalf("Method.ID = %d", f.Method.ID)
	}
}

func TestSimpleRPCLibraryExceptionOnClosedConnection(t *testing.T) {
	tr, st, server := newRPCFixture(t)
	_ = server.Close()

	r := SimpleRPC(st, tr, 0, wire.ConnectionOpen, wire.ConnectionOpenMethod{}, []uint32{wire.ConnectionOpenOk})
	if r.Kind != LibraryException {
		t.Fatalf("Kind = %v, want LibraryException", r.Kind)
	}
}
