package wire

import (
	"encoding/binary"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Method IDs are (class-id << 16) | method-id, exactly as rabbitmq-c's
// AMQP_xxx_METHOD constants are built, per original_source/librabbitmq's
// amqp_framing.h convention (not kept in this pack, but its call sites in
// amqp_socket.c confirm the id scheme).
const (
	classConnection = 10
	classChannel    = 20

	ConnectionStart   = classConnection<<16 | 10
	ConnectionStartOk = classConnection<<16 | 11
	ConnectionTune    = classConnection<<16 | 30
	ConnectionTuneOk  = classConnection<<16 | 31
	ConnectionOpen    = classConnection<<16 | 40
	ConnectionOpenOk  = classConnection<<16 | 41
	ConnectionClose   = classConnection<<16 | 50
	ConnectionCloseOk = classConnection<<16 | 51
	ChannelClose      = classChannel<<16 | 40
	ChannelCloseOk    = classChannel<<16 | 41
)

// ConnectionStartMethod is the server's greeting.
type ConnectionStartMethod struct {
	VersionMajor     uint8
	VersionMinor     uint8
	ServerProperties amqp.Table
	Mechanisms       string
	Locales          string
}

// ConnectionStartOkMethod is the client's handshake response.
type ConnectionStartOkMethod struct {
	ClientProperties amqp.Table
	Mechanism        string
	Response         []byte
	Locale           string
}

// ConnectionTuneMethod carries the server's proposed tuning values.
type ConnectionTuneMethod struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

// ConnectionTuneOkMethod carries the negotiated tuning values.
type ConnectionTuneOkMethod struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

// ConnectionOpenMethod requests a virtual host. Capabilities and Insist are
// retained-for-compatibility fields; this client always sends them empty /
// true, exactly as the original C client does.
type ConnectionOpenMethod struct {
	VirtualHost  string
	Capabilities string
	Insist       bool
}

// ConnectionOpenOkMethod is the server's acceptance of Connection.Open.
type ConnectionOpenOkMethod struct {
	KnownHosts string
}

// CloseMethod models both Connection.Close and Channel.Close; the two
// methods share an identical argument shape in AMQP 0-9-1.
type CloseMethod struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

// AsError converts a decoded close method into the exported amqp091.Error
// shape, which is this module's chosen vocabulary for server-originated
// close reasons (see SPEC_FULL.md §6.3/§11).
func (c CloseMethod) AsError() *amqp.Error {
	return &amqp.Error{
		Code:    int(c.ReplyCode),
		Reason:  c.ReplyText,
		Server:  true,
		Recover: false,
	}
}

// DecodeMethod decodes a method frame's argument bytes, keyed by method id.
// Ids other than the server-sent handshake methods (Start, Tune, OpenOk)
// and channel/connection close are returned with Decoded == nil; the raw
// bytes remain available via Frame.Payload so such frames can still be
// queued and later handed back to the caller untouched.
func DecodeMethod(payload []byte) (uint32, any, error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("wire: method frame shorter than class/method header")
	}
	classID := binary.BigEndian.Uint16(payload[0:2])
	methodID := binary.BigEndian.Uint16(payload[2:4])
	id := uint32(classID)<<16 | uint32(methodID)
	args := payload[4:]

	switch id {
	case ConnectionStart:
		return id, decodeConnectionStart(args)
	case ConnectionTune:
		return id, decodeConnectionTune(args)
	case ConnectionOpenOk:
		return id, decodeConnectionOpenOk(args)
	case ConnectionClose, ChannelClose:
		m, err := decodeCloseMethod(args)
		return id, m, err
	default:
		return id, nil, nil
	}
}

// EncodeMethod encodes a method's class/method header plus its arguments.
func EncodeMethod(id uint32, decoded any) ([]byte, error) {
	classID := uint16(id >> 16)
	methodID := uint16(id)
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], classID)
	binary.BigEndian.PutUint16(hdr[2:4], methodID)

	var args []byte
	var err error
	switch id {
	case ConnectionStartOk:
		m, ok := decoded.(ConnectionStartOkMethod)
		if !ok {
			return nil, fmt.Errorf("wire: encode %d: wrong argument type %T", id, decoded)
		}
		args = encodeConnectionStartOk(m)
	case ConnectionTuneOk:
		m, ok := decoded.(ConnectionTuneOkMethod)
		if !ok {
			return nil, fmt.Errorf("wire: encode %d: wrong argument type %T", id, decoded)
		}
		args = encodeConnectionTuneOk(m)
	case ConnectionOpen:
		m, ok := decoded.(ConnectionOpenMethod)
		if !ok {
			return nil, fmt.Errorf("wire: encode %d: wrong argument type %T", id, decoded)
		}
		args = encodeConnectionOpen(m)
	case ConnectionCloseOk, ChannelCloseOk:
		args = nil
	default:
		return nil, fmt.Errorf("wire: encode: unsupported method id %d", id)
	}
	if err != nil {
		return nil, err
	}
	return append(hdr[:], args...), nil
}

func decodeConnectionStart(b []byte) (ConnectionStartMethod, error) {
	var m ConnectionStartMethod
	if len(b) < 2 {
		return m, fmt.Errorf("wire: truncated connection.start version")
	}
	m.VersionMajor = b[0]
	m.VersionMinor = b[1]
	off := 2

	if len(b) < off+4 {
		return m, fmt.Errorf("wire: truncated connection.start properties length")
	}
	tlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b) < off+tlen {
		return m, fmt.Errorf("wire: truncated connection.start properties body")
	}
	props, err := DecodeTable(b[off : off+tlen])
	if err != nil {
		return m, err
	}
	m.ServerProperties = props
	off += tlen

	s, n, err := readLongStr(b[off:])
	if err != nil {
		return m, fmt.Errorf("wire: connection.start mechanisms: %w", err)
	}
	m.Mechanisms = s
	off += n

	s, _, err = readLongStr(b[off:])
	if err != nil {
		return m, fmt.Errorf("wire: connection.start locales: %w", err)
	}
	m.Locales = s
	return m, nil
}

func encodeConnectionStartOk(m ConnectionStartOkMethod) []byte {
	var buf []byte
	buf = append(buf, EncodeTableArg(m.ClientProperties)...)
	buf = appendShortStr(buf, m.Mechanism)
	var lenb [4]byte
	binary.BigEndian.PutUint32(lenb[:], uint32(len(m.Response)))
	buf = append(buf, lenb[:]...)
	buf = append(buf, m.Response...)
	buf = appendShortStr(buf, m.Locale)
	return buf
}

func decodeConnectionTune(b []byte) (ConnectionTuneMethod, error) {
	var m ConnectionTuneMethod
	if len(b) < 8 {
		return m, fmt.Errorf("wire: truncated connection.tune")
	}
	m.ChannelMax = binary.BigEndian.Uint16(b[0:2])
	m.FrameMax = binary.BigEndian.Uint32(b[2:6])
	m.Heartbeat = binary.BigEndian.Uint16(b[6:8])
	return m, nil
}

func encodeConnectionTuneOk(m ConnectionTuneOkMethod) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], m.ChannelMax)
	binary.BigEndian.PutUint32(buf[2:6], m.FrameMax)
	binary.BigEndian.PutUint16(buf[6:8], m.Heartbeat)
	return buf
}

func encodeConnectionOpen(m ConnectionOpenMethod) []byte {
	var buf []byte
	buf = appendShortStr(buf, m.VirtualHost)
	buf = appendShortStr(buf, m.Capabilities)
	if m.Insist {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeConnectionOpenOk(b []byte) (ConnectionOpenOkMethod, error) {
	var m ConnectionOpenOkMethod
	s, _, err := readShortStr(b)
	if err != nil {
		return m, fmt.Errorf("wire: connection.open-ok: %w", err)
	}
	m.KnownHosts = s
	return m, nil
}

func decodeCloseMethod(b []byte) (CloseMethod, error) {
	var m CloseMethod
	if len(b) < 2 {
		return m, fmt.Errorf("wire: truncated close reply-code")
	}
	m.ReplyCode = binary.BigEndian.Uint16(b[0:2])
	off := 2
	s, n, err := readShortStr(b[off:])
	if err != nil {
		return m, fmt.Errorf("wire: close reply-text: %w", err)
	}
	m.ReplyText = s
	off += n
	if len(b) < off+4 {
		return m, fmt.Errorf("wire: truncated close class/method")
	}
	m.ClassID = binary.BigEndian.Uint16(b[off : off+2])
	m.MethodID = binary.BigEndian.Uint16(b[off+2 : off+4])
	return m, nil
}

func readShortStr(b []byte) (string, int, error) {
	if len(b) < 1 {
		return "", 0, fmt.Errorf("truncated shortstr length")
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", 0, fmt.Errorf("truncated shortstr body")
	}
	return string(b[1 : 1+n]), 1 + n, nil
}

func readLongStr(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, fmt.Errorf("truncated longstr length")
	}
	n := int(binary.BigEndian.Uint32(b[:4]))
	if len(b) < 4+n {
		return "", 0, fmt.Errorf("truncated longstr body")
	}
	return string(b[4 : 4+n]), 4 + n, nil
}
