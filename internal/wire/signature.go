package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

// HashAlgorithm / SignatureAlgorithm / SignatureAndHashAlgorithm /
// DigitallySigned mirror original_source/src/signature.rs exactly (the
// wire shapes a ServerKeyExchange's trailing signature block carries).
type HashAlgorithm uint8

const (
	HashNone   HashAlgorithm = 0
	HashMD5    HashAlgorithm = 1
	HashSHA1   HashAlgorithm = 2
	HashSHA224 HashAlgorithm = 3
	HashSHA256 HashAlgorithm = 4
	HashSHA384 HashAlgorithm = 5
	HashSHA512 HashAlgorithm = 6
)

type SignatureAlgorithm uint8

const (
	SigAnonymous SignatureAlgorithm = 0
	SigRSA       SignatureAlgorithm = 1
	SigDSA       SignatureAlgorithm = 2
	SigECDSA     SignatureAlgorithm = 3
)

type SignatureAndHashAlgorithm struct {
	Hash HashAlgorithm
	Sig  SignatureAlgorithm
}

// DigitallySigned is `struct DigitallySigned { algorithm, signature }`.
type DigitallySigned struct {
	Algorithm SignatureAndHashAlgorithm
	Signature []byte
}

func readDigitallySigned(s *cryptobyte.String) (DigitallySigned, error) {
	var ds DigitallySigned
	var hash, sig uint8
	if !s.ReadUint8(&hash) || !s.ReadUint8(&sig) {
		return ds, decodeErr("truncated SignatureAndHashAlgorithm")
	}
	ds.Algorithm = SignatureAndHashAlgorithm{Hash: HashAlgorithm(hash), Sig: SignatureAlgorithm(sig)}

	signature, err := readVec16(s, 0, 1<<16-1)
	if err != nil {
		return ds, err
	}
	ds.Signature = signature
	return ds, nil
}

// ServerKeyExchangeECDHE is the decoded body of a ServerKeyExchange
// message for this cipher suite, per original_source/src/cipher/ecdhe.rs's
// `EcdheServerKeyExchange { params: ServerEcdhParams, signed_params:
// DigitallySigned }`, itself `ServerEcdhParams{curve_params, public}`.
// curve_params is restricted here to the one legal shape,
// `named_curve(NamedCurve)`, tag 3 - the only EcParameters variant the
// original project (or this one) ever emits or accepts.
type ServerKeyExchangeECDHE struct {
	Curve     NamedCurve
	PublicKey []byte // SEC1 uncompressed point, 0x04 || X || Y
	Signed    DigitallySigned
	// RawParams is curve_params || public, exactly the bytes the server
	// signed (client_random || server_random are prepended separately by
	// the caller) - kept for signature verification in internal/certverify.
	RawParams []byte
}

const ecParametersNamedCurve uint8 = 3

func ParseServerKeyExchangeECDHE(body []byte) (ServerKeyExchangeECDHE, error) {
	var out ServerKeyExchangeECDHE
	s := cryptobyte.String(body)

	paramsStart := []byte(s)

	var curveParamsTag uint8
	if !s.ReadUint8(&curveParamsTag) {
		return out, decodeErr("truncated ServerKeyExchange.curve_params tag")
	}
	if curveParamsTag != ecParametersNamedCurve {
		return out, decodeErr("ServerKeyExchange.curve_params is not named_curve")
	}
	var curve uint16
	if !s.ReadUint16(&curve) {
		return out, decodeErr("truncated ServerKeyExchange.curve_params.named_curve")
	}
	out.Curve = NamedCurve(curve)

	pub, err := readVec8(&s, 1, 1<<8-1)
	if err != nil {
		return out, err
	}
	out.PublicKey = pub

	paramsLen := len(paramsStart) - len(s)
	out.RawParams = append([]byte(nil), paramsStart[:paramsLen]...)

	signed, err := readDigitallySigned(&s)
	if err != nil {
		return out, err
	}
	out.Signed = signed

	if err := requireEmpty(s); err != nil {
		return out, err
	}
	return out, nil
}
