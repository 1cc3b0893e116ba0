package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

// MarshalClientKeyExchangeECDHE builds the ClientKeyExchange body for
// ECDHE: a single opaque<1..255> vector carrying the client's SEC1
// uncompressed public point. Grounded on
// original_source/src/cipher/ecdhe.rs's `compute_keys`, which writes `gx`
// the same way the server did for its own public key.
func MarshalClientKeyExchangeECDHE(publicKey []byte) []byte {
	var b cryptobyte.Builder
	addVec8(&b, publicKey)
	return b.BytesOrPanic()
}

// VerifyDataLen is the fixed size of `VerifyData = [u8, ..12]`
// (original_source/src/handshake.rs). TLS 1.2 allows other cipher
// suites to use a different length, but this one doesn't.
const VerifyDataLen = 12

// MarshalFinished wraps the 12-byte verify-data as the Finished body
// (it's a fixed-size array on the wire, not length-prefixed).
func MarshalFinished(verifyData [VerifyDataLen]byte) []byte {
	return append([]byte(nil), verifyData[:]...)
}

func ParseFinished(body []byte) (verifyData [VerifyDataLen]byte, err error) {
	if len(body) != VerifyDataLen {
		return verifyData, decodeErr("Finished body is not 12 bytes")
	}
	copy(verifyData[:], body)
	return verifyData, nil
}
