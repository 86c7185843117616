package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Field-table type tags, per the AMQP 0-9-1 field-value grammar (the same
// tag set rabbitmq-c and amqp091-go use on the wire).
const (
	tagBoolean   = 't'
	tagShortInt  = 's' // 16-bit signed
	tagLongInt   = 'I' // 32-bit signed
	tagLongLong  = 'l' // 64-bit signed
	tagFloat     = 'f'
	tagDouble    = 'd'
	tagDecimal   = 'D'
	tagLongStr   = 'S'
	tagByteArray = 'x'
	tagTimestamp = 'T'
	tagTable     = 'F'
	tagArray     = 'A'
	tagVoid      = 'V'
)

// EncodeTable serializes an amqp091.Table (map[string]interface{}) into an
// AMQP field-table byte string, without the leading 4-byte length prefix
// (callers that embed a table as a method argument add that prefix).
func EncodeTable(t amqp.Table) []byte {
	var buf []byte
	for k, v := range t {
		buf = appendShortStr(buf, k)
		buf = appendFieldValue(buf, v)
	}
	return buf
}

// EncodeTableArg encodes a table method argument: 4-byte BE length prefix
// followed by the field-table bytes.
func EncodeTableArg(t amqp.Table) []byte {
	body := EncodeTable(t)
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

func appendShortStr(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

func appendLongStr(buf []byte, s string) []byte {
	var lenb [4]byte
	binary.BigEndian.PutUint32(lenb[:], uint32(len(s)))
	buf = append(buf, lenb[:]...)
	return append(buf, s...)
}

func appendFieldValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case bool:
		buf = append(buf, tagBoolean)
		if val {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case int16:
		buf = append(buf, tagShortInt)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(val))
		buf = append(buf, b[:]...)
	case int32:
		buf = append(buf, tagLongInt)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(val))
		buf = append(buf, b[:]...)
	case int:
		buf = append(buf, tagLongInt)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(val)))
		buf = append(buf, b[:]...)
	case int64:
		buf = append(buf, tagLongLong)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(val))
		buf = append(buf, b[:]...)
	case float32:
		buf = append(buf, tagFloat)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], math.Float32bits(val))
		buf = append(buf, b[:]...)
	case float64:
		buf = append(buf, tagDouble)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(val))
		buf = append(buf, b[:]...)
	case amqp.Decimal:
		buf = append(buf, tagDecimal)
		buf = append(buf, val.Scale)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(val.Value))
		buf = append(buf, b[:]...)
	case string:
		buf = append(buf, tagLongStr)
		buf = appendLongStr(buf, val)
	case []byte:
		buf = append(buf, tagByteArray)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(val)))
		buf = append(buf, b[:]...)
		buf = append(buf, val...)
	case amqp.Table:
		buf = append(buf, tagTable)
		body := EncodeTable(val)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(body)))
		buf = append(buf, b[:]...)
		buf = append(buf, body...)
	case []any:
		buf = append(buf, tagArray)
		var body []byte
		for _, item := range val {
			body = appendFieldValue(body, item)
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(body)))
		buf = append(buf, b[:]...)
		buf = append(buf, body...)
	case nil:
		buf = append(buf, tagVoid)
	default:
		// Unknown Go type: encode as an empty void field rather than panic,
		// mirroring the defensive "never crash on an unsupported value"
		// posture of the teacher's codec (malformed input is counted, not fatal).
		buf = append(buf, tagVoid)
	}
	return buf
}

// DecodeTable parses body (the bytes following a table's length prefix) into
// an amqp091.Table.
func DecodeTable(body []byte) (amqp.Table, error) {
	t := amqp.Table{}
	off := 0
	for off < len(body) {
		if off >= len(body) {
			return nil, fmt.Errorf("wire: truncated table key")
		}
		klen := int(body[off])
		off++
		if off+klen > len(body) {
			return nil, fmt.Errorf("wire: truncated table key bytes")
		}
		key := string(body[off : off+klen])
		off += klen

		val, n, err := decodeFieldValue(body[off:])
		if err != nil {
			return nil, fmt.Errorf("wire: table value for %q: %w", key, err)
		}
		off += n
		t[key] = val
	}
	return t, nil
}

func decodeFieldValue(b []byte) (any, int, error) {
	if len(b) < 1 {
		return nil, 0, fmt.Errorf("truncated field value tag")
	}
	tag := b[0]
	rest := b[1:]
	switch tag {
	case tagBoolean:
		if len(rest) < 1 {
			return nil, 0, fmt.Errorf("truncated boolean")
		}
		return rest[0] != 0, 2, nil
	case tagShortInt:
		if len(rest) < 2 {
			return nil, 0, fmt.Errorf("truncated short-int")
		}
		return int16(binary.BigEndian.Uint16(rest[:2])), 3, nil
	case tagLongInt:
		if len(rest) < 4 {
			return nil, 0, fmt.Errorf("truncated long-int")
		}
		return int32(binary.BigEndian.Uint32(rest[:4])), 5, nil
	case tagLongLong:
		if len(rest) < 8 {
			return nil, 0, fmt.Errorf("truncated long-long")
		}
		return int64(binary.BigEndian.Uint64(rest[:8])), 9, nil
	case tagFloat:
		if len(rest) < 4 {
			return nil, 0, fmt.Errorf("truncated float")
		}
		return math.Float32frombits(binary.BigEndian.Uint32(rest[:4])), 5, nil
	case tagDouble:
		if len(rest) < 8 {
			return nil, 0, fmt.Errorf("truncated double")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(rest[:8])), 9, nil
	case tagDecimal:
		if len(rest) < 5 {
			return nil, 0, fmt.Errorf("truncated decimal")
		}
		scale := rest[0]
		value := int32(binary.BigEndian.Uint32(rest[1:5]))
		return amqp.Decimal{Scale: scale, Value: value}, 6, nil
	case tagLongStr:
		if len(rest) < 4 {
			return nil, 0, fmt.Errorf("truncated longstr length")
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if len(rest) < 4+n {
			return nil, 0, fmt.Errorf("truncated longstr body")
		}
		return string(rest[4 : 4+n]), 5 + n, nil
	case tagByteArray:
		if len(rest) < 4 {
			return nil, 0, fmt.Errorf("truncated bytearray length")
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if len(rest) < 4+n {
			return nil, 0, fmt.Errorf("truncated bytearray body")
		}
		out := make([]byte, n)
		copy(out, rest[4:4+n])
		return out, 5 + n, nil
	case tagTimestamp:
		if len(rest) < 8 {
			return nil, 0, fmt.Errorf("truncated timestamp")
		}
		return binary.BigEndian.Uint64(rest[:8]), 9, nil
	case tagTable:
		if len(rest) < 4 {
			return nil, 0, fmt.Errorf("truncated table length")
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if len(rest) < 4+n {
			return nil, 0, fmt.Errorf("truncated table body")
		}
		sub, err := DecodeTable(rest[4 : 4+n])
		if err != nil {
			return nil, 0, err
		}
		return sub, 5 + n, nil
	case tagArray:
		if len(rest) < 4 {
			return nil, 0, fmt.Errorf("truncated array length")
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if len(rest) < 4+n {
			return nil, 0, fmt.Errorf("truncated array body")
		}
		arr := []any{}
		body := rest[4 : 4+n]
		off := 0
		for off < len(body) {
			v, consumed, err := decodeFieldValue(body[off:])
			if err != nil {
				return nil, 0, err
			}
			arr = append(arr, v)
			off += consumed
		}
		return arr, 5 + n, nil
	case tagVoid:
		return nil, 1, nil
	default:
		return nil, 0, fmt.Errorf("unsupported field tag %q", tag)
	}
}
