package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

// ProtocolVersion is `struct ProtocolVersion { major: u8, minor: u8 }`.
// This module only ever writes/expects (3, 3) (TLS 1.2), but the wire
// shape itself has no such restriction; validation is the caller's job
// (spec.md's ServerHello validation step).
type ProtocolVersion struct {
	Major, Minor uint8
}

var TLS12 = ProtocolVersion{Major: 3, Minor: 3}

func (v ProtocolVersion) marshal(b *cryptobyte.Builder) {
	b.AddUint8(v.Major)
	b.AddUint8(v.Minor)
}

func readProtocolVersion(s *cryptobyte.String) (ProtocolVersion, error) {
	var v ProtocolVersion
	if !s.ReadUint8(&v.Major) || !s.ReadUint8(&v.Minor) {
		return v, decodeErr("truncated ProtocolVersion")
	}
	return v, nil
}

// Random is the 32-byte nonce each side contributes
// (original_source/src/handshake.rs's tls_array!(Random = [u8, ..32])).
type Random [32]byte

// NamedCurve values from RFC 4492's registry; only secp256r1 is ever
// legal for this suite, but the wire type itself is the full u16 space.
type NamedCurve uint16

const Secp256r1 NamedCurve = 23

// ECPointFormat values from RFC 4492.
type ECPointFormat uint8

const UncompressedPoint ECPointFormat = 0

// CipherSuite is the 2-byte identifier negotiated in ClientHello/ServerHello.
type CipherSuite uint16

const TLSEcdheRsaWithChaCha20Poly1305SHA256 CipherSuite = 0xCC13

// CompressionMethod; only Null is ever used (compression is a Non-goal).
type CompressionMethod uint8

const CompressionNull CompressionMethod = 0

// extTypeEllipticCurves is `extension_type=10` whose body is, per the
// FIXME in original_source/src/handshake.rs, a *vector of vectors*: the
// outer length-prefix is the opaque extension_data wrapper every
// Extension carries, and the inner length-prefix is EllipticCurveList
// itself - the "double-wrapped" quirk spec.md calls out explicitly as an
// edge case to preserve, not paper over.
const extTypeEllipticCurves uint16 = 10
const extTypeECPointFormats uint16 = 11

// ClientHello is `struct ClientHello { ... }` restricted to the fields
// this client ever sends: empty session id (no resumption), exactly one
// cipher suite, exactly one compression method, and the two RFC 4492
// extensions spec.md's §4.5 ClientHello-contents paragraph names.
type ClientHello struct {
	Version      ProtocolVersion
	Random       Random
	SessionID    []byte
	CipherSuites []CipherSuite
	Compressions []CompressionMethod
	// EllipticCurves/ECPointFormats are nil when the ClientHello carries
	// no extensions at all; this client always sets both.
	EllipticCurves []NamedCurve
	ECPointFormats []ECPointFormat
}

func (c ClientHello) Marshal() []byte {
	var b cryptobyte.Builder
	c.Version.marshal(&b)
	b.AddBytes(c.Random[:])
	addVec8(&b, c.SessionID)

	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cs := range c.CipherSuites {
			b.AddUint16(uint16(cs))
		}
	})

	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, m := range c.Compressions {
			b.AddUint8(uint8(m))
		}
	})

	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { // ExtensionVec
		if len(c.EllipticCurves) > 0 {
			b.AddUint16(extTypeEllipticCurves)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { // extension_data
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { // EllipticCurveList
					for _, nc := range c.EllipticCurves {
						b.AddUint16(uint16(nc))
					}
				})
			})
		}
		if len(c.ECPointFormats) > 0 {
			b.AddUint16(extTypeECPointFormats)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
					for _, pf := range c.ECPointFormats {
						b.AddUint8(uint8(pf))
					}
				})
			})
		}
	})

	return b.BytesOrPanic()
}

// ServerHello is `struct ServerHello { ... }`. This client does not parse
// server extensions (it has nothing to react to in them): whatever bytes
// remain after compression_method, if any, are the extensions blob and
// are left unread, matching tls_option!'s "read to end, may be absent"
// semantics in original_source/src/tls_item.rs without needing to
// interpret the contents.
type ServerHello struct {
	Version     ProtocolVersion
	Random      Random
	SessionID   []byte
	CipherSuite CipherSuite
	Compression CompressionMethod
}

func ParseServerHello(body []byte) (ServerHello, error) {
	s := cryptobyte.String(body)
	var sh ServerHello

	v, err := readProtocolVersion(&s)
	if err != nil {
		return sh, err
	}
	sh.Version = v

	if !s.CopyBytes(sh.Random[:]) {
		return sh, decodeErr("truncated ServerHello.random")
	}

	sessionID, err := readVec8(&s, 0, 32)
	if err != nil {
		return sh, err
	}
	sh.SessionID = sessionID

	var cs uint16
	if !s.ReadUint16(&cs) {
		return sh, decodeErr("truncated ServerHello.cipher_suite")
	}
	sh.CipherSuite = CipherSuite(cs)

	var comp uint8
	if !s.ReadUint8(&comp) {
		return sh, decodeErr("truncated ServerHello.compression_method")
	}
	sh.Compression = CompressionMethod(comp)

	// Extensions, if present, are intentionally left unexamined: this
	// client reacts to nothing a server might put there.
	return sh, nil
}
