// Package certverify adds certificate-chain and ServerKeyExchange
// signature validation that original_source/src/handshake.rs's
// EllipticDiffieHellman::compute_keys never performed: spec.md's §9 Open
// Question flags the reference client's "accept the leaf without
// validation" behavior and directs a complete implementation to add it.
//
// This is the one component of the handshake that deliberately does not
// hand-roll its primitive: certificate chain building and RSA/PKCS#1v1.5
// signature verification are not among the primitives spec.md §4.2
// requires be implemented from scratch (ChaCha20, Poly1305, SHA-256,
// HMAC, P-256), and no repo in the example pack ships a from-scratch
// X.509/DER parser to ground one on. crypto/x509 and crypto/rsa are the
// correct tool here.
package certverify

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"time"

	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/wire"
)

// VerifyChain parses the DER certificates from a Certificate handshake
// message (leaf first, as original_source/src/handshake.rs's
// CertificateList orders them) and verifies the leaf chains to a root in
// the given pool for serverName. roots may be nil to use the system pool.
func VerifyChain(der [][]byte, serverName string, roots *x509.CertPool, now time.Time) (*x509.Certificate, error) {
	if len(der) == 0 {
		return nil, alerts.New(alerts.DecodeError, "empty certificate chain")
	}

	certs := make([]*x509.Certificate, len(der))
	for i, d := range der {
		cert, err := x509.ParseCertificate(d)
		if err != nil {
			return nil, alerts.Wrap(alerts.DecodeError, err, "failed to parse certificate %d", i)
		}
		certs[i] = cert
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		DNSName:       serverName,
		Intermediates: intermediates,
		Roots:         roots,
		CurrentTime:   now,
	}
	if _, err := certs[0].Verify(opts); err != nil {
		return nil, alerts.Wrap(alerts.DecryptError, err, "certificate chain verification failed")
	}

	return certs[0], nil
}

// VerifyServerKeyExchangeSignature checks the DigitallySigned block
// attached to a ServerKeyExchange against the leaf certificate's RSA
// public key, over the exact bytes the server signed: client_random ||
// server_random || curve_params || public (original_source/src/
// cipher/ecdhe.rs builds signed_params the same way before handing it to
// the signature check it never actually calls).
//
// Only rsa_pkcs1/sha256 is accepted: it is the only SignatureAndHashAlgorithm
// the handshake state machine is prepared to verify. (The ClientHello sends
// no signature_algorithms extension, so this is not advertised to the server.)
func VerifyServerKeyExchangeSignature(leaf *x509.Certificate, clientRandom, serverRandom [32]byte, skx wire.ServerKeyExchangeECDHE) error {
	if skx.Signed.Algorithm.Hash != wire.HashSHA256 || skx.Signed.Algorithm.Sig != wire.SigRSA {
		return alerts.New(alerts.DecodeError, "unsupported SignatureAndHashAlgorithm (%d, %d)", skx.Signed.Algorithm.Hash, skx.Signed.Algorithm.Sig)
	}

	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return alerts.New(alerts.DecryptError, "leaf certificate does not carry an RSA public key")
	}

	signed := make([]byte, 0, 64+len(skx.RawParams))
	signed = append(signed, clientRandom[:]...)
	signed = append(signed, serverRandom[:]...)
	signed = append(signed, skx.RawParams...)
	digest := sha256.Sum256(signed)

	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], skx.Signed.Signature); err != nil {
		return alerts.Wrap(alerts.DecryptError, err, "ServerKeyExchange signature verification failed")
	}
	return nil
}
