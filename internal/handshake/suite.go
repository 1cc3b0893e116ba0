package handshake

import (
	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/wire"
)

// CipherSuite names one negotiable suite. This is the adapted remnant of
// the teacher's (paymentlogs-utls) cipher_suites.go: that file's
// aeadChaCha20Poly1305/nonce-composition plumbing is superseded entirely
// by internal/aead's draft-agl framing (see DESIGN.md), but the shape of
// a small registration struct plus a mutualCipherSuite-style negotiation
// check survives here, trimmed to the single suite spec.md names.
type CipherSuite struct {
	ID   wire.CipherSuite
	Name string
}

// SupportedSuites is the list this client offers in ClientHello, in
// preference order. There is exactly one entry: spec.md restricts this
// client to TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256.
var SupportedSuites = []CipherSuite{
	{ID: wire.TLSEcdheRsaWithChaCha20Poly1305SHA256, Name: "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256"},
}

// OfferedSuiteIDs returns the wire-format cipher suite list for ClientHello.
func OfferedSuiteIDs() []wire.CipherSuite {
	ids := make([]wire.CipherSuite, len(SupportedSuites))
	for i, s := range SupportedSuites {
		ids[i] = s.ID
	}
	return ids
}

// NegotiateServerChoice checks the server's ServerHello.cipher_suite
// against SupportedSuites, mirroring the teacher's mutualCipherSuite
// matching but against a one-element list: the server either picked the
// suite this client offered, or the handshake cannot continue.
func NegotiateServerChoice(chosen wire.CipherSuite) (CipherSuite, error) {
	for _, s := range SupportedSuites {
		if s.ID == chosen {
			return s, nil
		}
	}
	return CipherSuite{}, alerts.New(alerts.IllegalParameter, "server chose unsupported cipher suite %#04x", uint16(chosen))
}
