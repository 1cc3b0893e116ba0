// Package wire implements the TLS 1.2 presentation-language codec this
// module needs: big-endian fixed-width integers, length-prefixed vectors
// with the "consumed bytes must equal the declared length" discipline,
// tagged-struct enums, and the handshake message envelope.
//
// The Rust original (original_source/src/tls_item.rs) expresses this as a
// family of declarative macros (tls_primitive!/tls_struct!/tls_enum!/
// tls_vec!) generating a TlsItem trait implementation per type. Go has no
// macro system, so each type here hand-writes the same read/write pair
// directly against golang.org/x/crypto/cryptobyte - the same "declared
// length must match consumed length" substrate crypto/tls itself uses for
// this exact wire format.
package wire

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/klutzy/suruga/internal/alerts"
)

// decodeErr wraps a cryptobyte parse failure (ReadXxx returning false) as
// the protocol's DecodeError kind.
func decodeErr(what string) error {
	return alerts.New(alerts.DecodeError, "%s", what)
}

// readVec8/16 read a length-prefixed opaque vector and enforce min/max
// bounds on the resulting byte count, mirroring tls_vec!'s data_size
// bounds check in original_source/src/tls_item.rs.
func readVec8(s *cryptobyte.String, min, max int) ([]byte, error) {
	var out cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&out) {
		return nil, decodeErr("truncated u8-length-prefixed vector")
	}
	if len(out) < min || len(out) > max {
		return nil, decodeErr("vector length out of bounds")
	}
	return []byte(out), nil
}

func readVec16(s *cryptobyte.String, min, max int) ([]byte, error) {
	var out cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&out) {
		return nil, decodeErr("truncated u16-length-prefixed vector")
	}
	if len(out) < min || len(out) > max {
		return nil, decodeErr("vector length out of bounds")
	}
	return []byte(out), nil
}

func readVec24(s *cryptobyte.String, min, max int) ([]byte, error) {
	var out cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&out) {
		return nil, decodeErr("truncated u24-length-prefixed vector")
	}
	if len(out) < min || len(out) > max {
		return nil, decodeErr("vector length out of bounds")
	}
	return []byte(out), nil
}

func addVec8(b *cryptobyte.Builder, data []byte) {
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(data)
	})
}

func addVec16(b *cryptobyte.Builder, data []byte) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(data)
	})
}

func addVec24(b *cryptobyte.Builder, data []byte) {
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(data)
	})
}

// requireEmpty mirrors tls_handshake!'s "expected EOF but found not"
// check, reported here as DecodeError: a message that still has trailing
// bytes after every declared field has been read is malformed, not a
// legitimate message.
func requireEmpty(s cryptobyte.String) error {
	if !s.Empty() {
		return alerts.New(alerts.DecodeError, "trailing bytes after message body")
	}
	return nil
}
