// Package amqperr defines the sentinel error taxonomy shared by every layer
// of the connection core (transport, connio, rpc, handshake), grounded on
// the teacher's internal/server/errors.go pattern: package-level
// errors.New sentinels, wrapped with %w at the point of failure and
// classified upward with errors.Is. The root package re-exports these
// under the same names for the public API (see connection.go at the module
// root).
package amqperr

import "errors"

var (
	// ErrSocketLibInit is fatal for the connection; reserved for platforms
	// that require one-shot socket library initialization (spec.md §4.2
	// step 1). Go's net package never needs this, but the sentinel is kept
	// so the error taxonomy matches spec.md §7 exactly.
	ErrSocketLibInit = errors.New("amqpgo: socket library init failed")

	ErrHostnameResolution      = errors.New("amqpgo: hostname resolution failed")
	ErrSocket                  = errors.New("amqpgo: socket error")
	ErrConnectionClosed        = errors.New("amqpgo: connection closed")
	ErrTimeout                 = errors.New("amqpgo: timeout")
	ErrInvalidParameter        = errors.New("amqpgo: invalid parameter")
	ErrTimerFailure            = errors.New("amqpgo: monotonic timer failure")
	ErrWrongMethod             = errors.New("amqpgo: wrong method")
	ErrIncompatibleAMQPVersion = errors.New("amqpgo: incompatible amqp version")
	ErrNoMemory                = errors.New("amqpgo: pool allocation failed")
)
