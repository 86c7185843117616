package wire

import "fmt"

// Credentials is a tagged union of supported SASL mechanisms, replacing the
// original C client's variadic-argument-per-mechanism calling convention
// with a call-site-chosen type (per spec.md §9 "Variadic SASL arguments").
type Credentials interface {
	// Mechanism returns the wire mechanism name, e.g. "PLAIN".
	Mechanism() string
	// Response builds the SASL response bytes for Connection.StartOk.
	Response() ([]byte, error)
}

// PlainCredentials implements SASL PLAIN: a response of
// 0x00 || username || 0x00 || password, with no length prefix — the NUL
// bytes demarcate the three fields (spec.md §4.7, §8 property 5).
type PlainCredentials struct {
	Username string
	Password string
}

func (PlainCredentials) Mechanism() string { return "PLAIN" }

func (c PlainCredentials) Response() ([]byte, error) {
	out := make([]byte, 0, len(c.Username)+len(c.Password)+2)
	out = append(out, 0)
	out = append(out, c.Username...)
	out = append(out, 0)
	out = append(out, c.Password...)
	return out, nil
}

// ErrUnsupportedMechanism is returned (wrapped) by the handshake when the
// Credentials name a mechanism other than PLAIN. The original C client calls amqp_abort (terminating
// the process) for this case; a library must not do that, so this is
// returned as an ordinary error instead (see SPEC_FULL.md §12).
type ErrUnsupportedMechanism struct{ Mechanism string }

func (e ErrUnsupportedMechanism) Error() string {
	return fmt.Sprintf("wire: unsupported SASL mechanism %q", e.Mechanism)
}
