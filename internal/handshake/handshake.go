// Package handshake drives the connection handshake state machine (C7):
// INIT -> AWAIT_START -> NEG -> AWAIT_TUNE -> TUNED -> AWAIT_OPEN_OK -> OPEN.
// Grounded on amqp_login_inner in
// original_source/librabbitmq/amqp_socket.c.
package handshake

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kstaniek/amqpgo/internal/amqperr"
	"github.com/kstaniek/amqpgo/internal/connio"
	"github.com/kstaniek/amqpgo/internal/logging"
	"github.com/kstaniek/amqpgo/internal/metrics"
	"github.com/kstaniek/amqpgo/internal/rpc"
	"github.com/kstaniek/amqpgo/internal/transport"
	"github.com/kstaniek/amqpgo/internal/wire"
)

var log = logging.Component("handshake")

// defaultClientProperties mirrors amqp_login_inner's hardcoded defaults
// array (two entries in the C client: product and information). These
// always win on a key collision with caller-supplied properties — the
// merge rule spec.md §4.7 and §9 describe.
func defaultClientProperties() amqp.Table {
	return amqp.Table{
		"product":     "amqpgo",
		"information": "https://github.com/kstaniek/amqpgo",
	}
}

// Tuning holds the negotiated connection parameters after a successful
// handshake.
type Tuning struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
	KnownHosts string
}

// Params configures Login/LoginWithProperties.
type Params struct {
	VirtualHost string
	Credentials wire.Credentials
	// Proposed tuning values; 0 means "no preference", matching
	// amqp_login_inner's channel_max/frame_max/heartbeat arguments.
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
	// Properties merges into the client properties table sent with
	// Connection.StartOk; defaultClientProperties wins on key collisions.
	Properties amqp.Table
}

// Login runs the handshake with no custom client properties — the
// equivalent of amqp_login.
func Login(tr transport.Transport, st *connio.State, vhost string, creds wire.Credentials) (*Tuning, error) {
	return LoginWithProperties(tr, st, Params{
		VirtualHost: vhost,
		Credentials: creds,
	})
}

// LoginWithProperties runs the full handshake over tr/st with caller-chosen
// tuning preferences and client properties — the equivalent of
// amqp_login_with_properties.
func LoginWithProperties(tr transport.Transport, st *connio.State, p Params) (*Tuning, error) {
	metrics.IncHandshakeAttempt()
	log.Info("handshake_start", "vhost", p.VirtualHost)

	if err := sendHeader(tr); err != nil {
		metrics.IncError(metrics.ErrorHandshake)
		return nil, err
	}

	startFrame, err := rpc.WaitMethod(st, tr, 0, wire.ConnectionStart)
	if err != nil {
		metrics.IncError(metrics.ErrorHandshake)
		return nil, err
	}
	start, ok := startFrame.Method.Decoded.(wire.ConnectionStartMethod)
	if !ok {
		metrics.IncError(metrics.ErrorHandshake)
		return nil, fmt.Errorf("%w: malformed connection.start", amqperr.ErrWrongMethod)
	}
	if start.VersionMajor != 0 || start.VersionMinor != 9 {
		metrics.IncError(metrics.ErrorHandshake)
		return nil, fmt.Errorf("%w: server speaks %d-%d", amqperr.ErrIncompatibleAMQPVersion, start.VersionMajor, start.VersionMinor)
	}

	creds := p.Credentials
	if creds == nil {
		return nil, fmt.Errorf("%w: no credentials supplied", amqperr.ErrInvalidParameter)
	}
	// SASL is PLAIN-only (SPEC_FULL.md §12): the original amqp_socket.c's
	// sasl_method_name/sasl_response switch calls amqp_abort on anything
	// else, which a Go library must not do, so this is the re-expression —
	// a LibraryException via ErrInvalidParameter instead of terminating the
	// process (see DESIGN.md's Q-SASL resolution). Note this checks the
	// mechanism creds itself claims to speak, not the server's offered
	// mechanism list in start.Mechanisms, which is never cross-checked
	// either way (amqp_login_inner doesn't do that check itself).
	if mech := creds.Mechanism(); mech != "PLAIN" {
		metrics.IncError(metrics.ErrorHandshake)
		return nil, fmt.Errorf("%w: %w", amqperr.ErrInvalidParameter, wire.ErrUnsupportedMechanism{Mechanism: mech})
	}
	response, err := creds.Response()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", amqperr.ErrInvalidParameter, err)
	}

	clientProps := mergeClientProperties(p.Properties)
	startOk := wire.ConnectionStartOkMethod{
		ClientProperties: clientProps,
		Mechanism:        creds.Mechanism(),
		Response:         response,
		Locale:           "en_US",
	}
	if err := sendMethod(tr, 0, wire.ConnectionStartOk, startOk); err != nil {
		return nil, err
	}
	st.ReleaseAll()

	tuneFrame, err := rpc.WaitMethod(st, tr, 0, wire.ConnectionTune)
	if err != nil {
		return nil, err
	}
	tune, ok := tuneFrame.Method.Decoded.(wire.ConnectionTuneMethod)
	if !ok {
		return nil, fmt.Errorf("%w: malformed connection.tune", amqperr.ErrWrongMethod)
	}

	negotiated := wire.ConnectionTuneOkMethod{
		ChannelMax: negotiateMin(p.ChannelMax, tune.ChannelMax),
		FrameMax:   negotiateMinU32(p.FrameMax, tune.FrameMax),
		Heartbeat:  negotiateMin(p.Heartbeat, tune.Heartbeat),
	}
	if err := sendMethod(tr, 0, wire.ConnectionTuneOk, negotiated); err != nil {
		return nil, err
	}
	st.ReleaseAll()

	openReply := rpc.SimpleRPC(st, tr, 0, wire.ConnectionOpen,
		wire.ConnectionOpenMethod{
			VirtualHost:  p.VirtualHost,
			Capabilities: "",
			Insist:       true,
		},
		[]uint32{wire.ConnectionOpenOk},
	)
	if err := openReply.AsError(); err != nil {
		metrics.IncError(metrics.ErrorHandshake)
		return nil, err
	}
	openOk, _ := openReply.Frame.Method.Decoded.(wire.ConnectionOpenOkMethod)
	if st.QueueLen() == 0 && !st.DataInBuffer() {
		st.ReleaseAll()
	}

	metrics.IncHandshakeSuccess()
	log.Info("handshake_tuned",
		"channel_max", negotiated.ChannelMax,
		"frame_max", negotiated.FrameMax,
		"heartbeat", negotiated.Heartbeat,
	)

	return &Tuning{
		ChannelMax: negotiated.ChannelMax,
		FrameMax:   negotiated.FrameMax,
		Heartbeat:  negotiated.Heartbeat,
		KnownHosts: openOk.KnownHosts,
	}, nil
}

func sendHeader(tr transport.Transport) error {
	return tr.Send(wire.ProtocolHeader[:])
}

func sendMethod(tr transport.Transport, channel uint16, id uint32, decoded any) error {
	frame, err := wire.EncodeMethodFrame(channel, id, decoded)
	if err != nil {
		return fmt.Errorf("%w: %v", amqperr.ErrInvalidParameter, err)
	}
	return tr.Send(frame)
}

// mergeClientProperties copies the hardcoded defaults first, then copies
// every caller-supplied entry whose key does not already appear in the
// defaults — defaults always win on collision (spec.md §4.7).
func mergeClientProperties(custom amqp.Table) amqp.Table {
	merged := defaultClientProperties()
	for k, v := range custom {
		if _, exists := merged[k]; exists {
			continue
		}
		merged[k] = v
	}
	return merged
}

// negotiateMin implements "effective = min_nonzero(client, server)": a
// zero on either side means "no preference", in which case the other side's
// value is adopted outright (spec.md §4.7's tuning negotiation rule). This
// extends amqp_login_inner's "if (server != 0 && server < client) client =
// server" with the client == 0 case, where the server's nonzero value wins.
func negotiateMin(client, server uint16) uint16 {
	if server != 0 && (client == 0 || server < client) {
		return server
	}
	return client
}

func negotiateMinU32(client, server uint32) uint32 {
	if server != 0 && (client == 0 || server < client) {
		return server
	}
	return client
}

