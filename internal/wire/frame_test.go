package wire

import (
	"bytes"
	"io"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	buf := EncodeFrame(FrameHeartbeat, 7, payload)

	f, err := Decode(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FrameHeartbeat {
		t.Fatalf("Type = %v, want FrameHeartbeat", f.Type)
	}
	if f.Channel != 7 {
		t.Fatalf("Channel = %d, want 7", f.Channel)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("Payload = %v, want %v", f.Payload, payload)
	}
}

func TestDecodeMalformedTerminator(t *testing.T) {
	buf := EncodeFrame(FrameHeartbeat, 0, nil)
	buf[len(buf)-1] = 0x00

	_, err := Decode(bytes.NewReader(buf))
	if err == nil {
		t.Fatalf("expected error for bad terminator")
	}
}

func TestDecodeOversizedLength(t *testing.T) {
	var hdr [7]byte
	hdr[0] = byte(FrameMethod)
	hdr[3] = 0xff
	hdr[4] = 0xff
	hdr[5] = 0xff
	hdr[6] = 0xff

	_, err := Decode(bytes.NewReader(hdr[:]))
	if err == nil {
		t.Fatalf("expected error for oversized length")
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{1, 2, 3}))
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF for a 3-byte header", err)
	}
}

func TestEncodeMethodFrameRoundTrip(t *testing.T) {
	m := ConnectionOpenMethod{VirtualHost: "/vhost", Capabilities: "", Insist: true}
	buf, err := EncodeMethodFrame(0, ConnectionOpen, m)
	if err != nil {
		t.Fatalf("EncodeMethodFrame: %v", err)
	}

	f, err := Decode(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != FrameMethod {
		t.Fatalf("Type = %v, want FrameMethod", f.Type)
	}
	if f.Method == nil {
		t.Fatalf("Method is nil")
	}
	if f.Method.ID != ConnectionOpen {
		t.Fatalf("Method.ID = %d, want %d", f.Method.ID, ConnectionOpen)
	}
	// ConnectionOpen is not one of the ids DecodeMethod knows how to decode
	// (it only decodes frames the client receives), so Decoded is nil and
	// the raw arg bytes remain in Payload.
	if f.Method.Decoded != nil {
		t.Fatalf("Decoded = %v, want nil for an outbound-only method id", f.Method.Decoded)
	}
}
