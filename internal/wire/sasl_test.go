package wire

import (
	"bytes"
	"testing"
)

func TestPlainCredentialsResponse(t *testing.T) {
	c := PlainCredentials{Username: "guest", Password: "s3cret"}
	resp, err := c.Response()
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	want := append([]byte{0}, append([]byte("guest"), append([]byte{0}, "s3cret"...)...)...)
	if !bytes.Equal(resp, want) {
		t.Fatalf("Response() = %v, want %v", resp, want)
	}
	if c.Mechanism() != "PLAIN" {
		t.Fatalf("Mechanism() = %q", c.Mechanism())
	}
}

func TestErrUnsupportedMechanism(t *testing.T) {
	err := ErrUnsupportedMechanism{Mechanism: "GSSAPI"}
	if err.Error() == "" {
		t.Fatalf("expected non-empty error message")
	}
}
