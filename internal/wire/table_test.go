package wire

import (
	"reflect"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestEncodeDecodeTableRoundTrip(t *testing.T) {
	in := amqp.Table{
		"str":   "hello",
		"bool":  true,
		"int32": int32(42),
		"int64": int64(1 << 40),
		"nested": amqp.Table{
			"inner": "value",
		},
	}

	body := EncodeTable(in)
	out, err := DecodeTable(body)
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}

	if out["str"] != "hello" {
		t.Fatalf("str = %v", out["str"])
	}
	if out["bool"] != true {
		t.Fatalf("bool = %v", out["bool"])
	}
	if out["int32"] != int32(42) {
		t.Fatalf("int32 = %v (%T)", out["int32"], out["int32"])
	}
	if out["int64"] != int64(1<<40) {
		t.Fatalf("int64 = %v", out["int64"])
	}
	nested, ok := out["nested"].(amqp.Table)
	if !ok || nested["inner"] != "value" {
		t.Fatalf("nested = %v", out["nested"])
	}
}

func TestEncodeDecodeArrayField(t *testing.T) {
	in := amqp.Table{"list": []any{int32(1), "two", true}}
	body := EncodeTable(in)
	out, err := DecodeTable(body)
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}
	got, ok := out["list"].([]any)
	if !ok {
		t.Fatalf("list type = %T", out["list"])
	}
	want := []any{int32(1), "two", true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("list = %v, want %v", got, want)
	}
}

func TestDecodeTableTruncated(t *testing.T) {
	if _, err := DecodeTable([]byte{5, 'a'}); err == nil {
		t.Fatalf("expected error for truncated key")
	}
}

func TestEncodeTableArgHasLengthPrefix(t *testing.T) {
	in := amqp.Table{"k": "v"}
	out := EncodeTableArg(in)
	body := EncodeTable(in)
	if len(out) != 4+len(body) {
		t.Fatalf("len(out) = %d, want %d", len(out), 4+len(body))
	}
}
