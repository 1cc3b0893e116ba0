package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

// ParseCertificateList decodes the `Certificate` handshake message body:
// a u24-length-prefixed vector of u24-length-prefixed DER certificates
// (original_source/src/handshake.rs: `tls_vec!(CertificateList =
// Asn1Cert(0, (1<<24)-1))` over `tls_vec!(Asn1Cert = u8(1, (1<<24)-1))`).
// The leaf is certs[0]. Every entry is returned because
// internal/certverify passes the whole list to crypto/x509 to build and
// verify the chain.
func ParseCertificateList(body []byte) ([][]byte, error) {
	s := cryptobyte.String(body)
	var listBody cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&listBody) {
		return nil, decodeErr("truncated CertificateList")
	}
	if err := requireEmpty(s); err != nil {
		return nil, err
	}

	var certs [][]byte
	for !listBody.Empty() {
		der, err := readVec24(&listBody, 1, 1<<24-1)
		if err != nil {
			return nil, err
		}
		certs = append(certs, der)
	}
	if len(certs) == 0 {
		return nil, decodeErr("empty CertificateList")
	}
	return certs, nil
}

// SkipCertificateRequest validates that body is a syntactically well
// formed CertificateRequest without retaining anything from it: spec.md
// §4.5 says this message "is accepted but ignored" because this client
// never offers a client certificate.
func SkipCertificateRequest(body []byte) error {
	s := cryptobyte.String(body)

	if _, err := readVec8(&s, 1, 1<<8-1); err != nil { // certificate_types
		return err
	}
	if _, err := readVec16(&s, 2, 1<<16-2); err != nil { // supported_signature_algorithms
		return err
	}

	var authorities cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&authorities) { // certificate_authorities
		return decodeErr("truncated CertificateRequest.certificate_authorities")
	}
	for !authorities.Empty() {
		if _, err := readVec16(&authorities, 1, 1<<16-1); err != nil {
			return err
		}
	}

	return requireEmpty(s)
}
