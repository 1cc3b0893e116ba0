package wire

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/klutzy/suruga/internal/alerts"
)

// HandshakeType is the one-byte discriminant of the `Handshake` struct
// (original_source/src/handshake.rs's tls_handshake! invocation). Only
// the variants this client role can send or receive are named; anything
// else decodes to UnexpectedMessage.
type HandshakeType uint8

const (
	HelloRequest       HandshakeType = 0
	ClientHelloType    HandshakeType = 1
	ServerHelloType    HandshakeType = 2
	CertificateType    HandshakeType = 11
	ServerKeyExchange  HandshakeType = 12
	CertificateRequest HandshakeType = 13
	ServerHelloDone    HandshakeType = 14
	ClientKeyExchange  HandshakeType = 16
	FinishedType       HandshakeType = 20
)

func (t HandshakeType) String() string {
	switch t {
	case HelloRequest:
		return "hello_request"
	case ClientHelloType:
		return "client_hello"
	case ServerHelloType:
		return "server_hello"
	case CertificateType:
		return "certificate"
	case ServerKeyExchange:
		return "server_key_exchange"
	case CertificateRequest:
		return "certificate_request"
	case ServerHelloDone:
		return "server_hello_done"
	case ClientKeyExchange:
		return "client_key_exchange"
	case FinishedType:
		return "finished"
	default:
		return "unknown"
	}
}

// Envelope is `struct Handshake { msg_type: u8, len: u24, body: opaque }`
// with the body left unparsed: internal/handshake dispatches on Type and
// decodes the body with the helpers below once it knows the message is
// actually expected in the current state.
type Envelope struct {
	Type HandshakeType
	Body []byte
}

// MarshalEnvelope serializes the 1+3-byte header and body, exactly the
// layout original_source/src/handshake.rs's tls_handshake! macro writes.
func MarshalEnvelope(msgType HandshakeType, body []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(msgType))
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(body)
	})
	return b.BytesOrPanic()
}

// ParseEnvelopeHeader reads only the 4-byte header (type + u24 length)
// out of buf and reports the total message length (header included), or
// ok=false if fewer than 4 bytes are available yet. This is what
// internal/record's handshake reassembly buffer polls on every new
// fragment, mirroring HandshakeBuffer::get_message's peek-before-slice
// structure in original_source/src/handshake.rs.
func ParseEnvelopeHeader(buf []byte) (totalLen int, ok bool) {
	if len(buf) < 4 {
		return 0, false
	}
	bodyLen := int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	return bodyLen + 4, true
}

// ParseEnvelope decodes one complete handshake message (exactly the bytes
// ParseEnvelopeHeader said to slice out) into its type and body.
func ParseEnvelope(msg []byte) (Envelope, error) {
	s := cryptobyte.String(msg)
	var msgType uint8
	if !s.ReadUint8(&msgType) {
		return Envelope{}, decodeErr("truncated handshake header")
	}
	var body cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&body) {
		return Envelope{}, decodeErr("truncated handshake body")
	}
	if !s.Empty() {
		return Envelope{}, alerts.New(alerts.InternalError, "handshake buffer sliced an over-long message")
	}
	return Envelope{Type: HandshakeType(msgType), Body: []byte(body)}, nil
}
