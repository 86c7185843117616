package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameDecoder decodes one frame at a time from a stream, resuming across
// interrupted reads instead of restarting from scratch. A plain Decode call
// loses whatever bytes io.ReadFull already consumed when a later sub-read on
// the same frame fails (e.g. a deadline firing between the header and the
// payload): the consumed bytes sit in a local variable that the caller never
// sees. FrameDecoder keeps that partially-read state in its own fields, so a
// caller that gets a timeout back from Decode can simply call Decode again
// once more data is available and continue exactly where the frame was left
// off, matching spec.md §5's "partial bytes stay in the inbound buffer for
// the next call" contract. See internal/connio.State, the sole caller.
type FrameDecoder struct {
	hdr        [frameHeaderLen]byte
	hdrN       int
	headerDone bool
	typ        FrameType
	channel    uint16
	length     uint32
	payload    []byte
	payloadN   int
	term       [1]byte
	termN      int
}

// NewFrameDecoder returns a decoder ready to read the first frame off r.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Decode reads from r until one complete frame has been decoded, or r
// returns an error. On error (including a deadline timeout surfaced as a
// net.Error), the decoder retains every byte it has already consumed for
// the in-progress frame; the next call to Decode on the same r resumes from
// that point rather than re-reading or discarding it.
func (d *FrameDecoder) Decode(r io.Reader) (Frame, error) {
	var f Frame

	if !d.headerDone {
		n, err := io.ReadFull(r, d.hdr[d.hdrN:])
		d.hdrN += n
		if err != nil {
			return f, err
		}
		d.typ = FrameType(d.hdr[0])
		d.channel = binary.BigEndian.Uint16(d.hdr[1:3])
		length := binary.BigEndian.Uint32(d.hdr[3:7])
		if length > MaxFramePayload {
			d.reset()
			return f, fmt.Errorf("wire decode: %w (%d)", ErrFrameTooLarge, length)
		}
		d.length = length
		d.payload = make([]byte, length)
		d.headerDone = true
	}

	if d.payloadN < int(d.length) {
		n, err := io.ReadFull(r, d.payload[d.payloadN:])
		d.payloadN += n
		if err != nil {
			return f, fmt.Errorf("wire decode payload: %w", err)
		}
	}

	if d.termN < 1 {
		n, err := io.ReadFull(r, d.term[d.termN:])
		d.termN += n
		if err != nil {
			return f, fmt.Errorf("wire decode terminator: %w", err)
		}
	}
	if d.term[0] != FrameEnd {
		d.reset()
		return f, ErrMalformedFrame
	}

	f.Type = d.typ
	f.Channel = d.channel
	f.Payload = d.payload
	if f.Type == FrameMethod {
		id, decoded, err := DecodeMethod(d.payload)
		if err != nil {
			d.reset()
			return f, err
		}
		f.Method = &DecodedMethod{ID: id, Decoded: decoded}
	}

	d.reset()
	return f, nil
}

func (d *FrameDecoder) reset() {
	*d = FrameDecoder{}
}
