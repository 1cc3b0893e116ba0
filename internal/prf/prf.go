// Package prf implements the TLS 1.2 pseudo-random function (RFC 5246
// §5), specialized to the SHA-256-only P_hash this cipher suite uses.
package prf

import "github.com/klutzy/suruga/internal/primcrypto"

// PRF is a streaming P_SHA256 generator: repeated calls to GetBytes act
// as though the whole output were generated at once and then sliced,
// buffering any leftover bytes from a partially-consumed HMAC block
// across calls. Grounded on original_source/src/cipher/prf.rs's `Prf`.
type PRF struct {
	secret []byte // SECRET
	seed   []byte
	a      [32]byte
	buf    []byte
}

// New starts a PRF instance over secret and seed (for TLS 1.2 key
// derivation, seed is the label concatenated with the two handshake
// randoms, in the order the caller specifies).
func New(secret, seed []byte) *PRF {
	p := &PRF{
		secret: append([]byte(nil), secret...),
		seed:   append([]byte(nil), seed...),
	}
	p.a = primcrypto.HMACSHA256(p.secret, p.seed)
	return p
}

func (p *PRF) nextBlock() [32]byte {
	input := make([]byte, 0, 32+len(p.seed))
	input = append(input, p.a[:]...)
	input = append(input, p.seed...)
	next := primcrypto.HMACSHA256(p.secret, input)
	p.a = primcrypto.HMACSHA256(p.secret, p.a[:])
	return next
}

// GetBytes returns the next `size` pseudorandom bytes.
func (p *PRF) GetBytes(size int) []byte {
	var ret []byte
	if len(p.buf) > 0 {
		if len(p.buf) <= size {
			ret = p.buf
			p.buf = nil
		} else {
			ret = append([]byte(nil), p.buf[:size]...)
			p.buf = p.buf[size:]
		}
	}

	for len(ret) < size {
		block := p.nextBlock()
		sliceLen := size - len(ret)
		if sliceLen > 32 {
			ret = append(ret, block[:]...)
		} else {
			ret = append(ret, block[:sliceLen]...)
			p.buf = append([]byte(nil), block[sliceLen:]...)
			break
		}
	}

	return ret
}
