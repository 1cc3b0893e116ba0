// Package aead implements the draft-agl-tls-chacha20poly1305-04 AEAD
// construction this suite uses: ChaCha20 for confidentiality, Poly1305
// for integrity, combined with the specific (unpadded) framing BoringSSL
// used before the suite was renumbered under RFC 7539.
//
// Grounded on original_source/src/cipher/chacha20_poly1305.rs.
package aead

import (
	"encoding/binary"

	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/primcrypto"
)

const (
	KeySize       = 32
	FixedIVLen    = 0
	ExplicitIVLen = 0
	MACLen        = 16
)

// Cipher holds the 32-byte write (or read) key fixed for the lifetime of
// one direction of one connection. The nonce is supplied per-record by
// the caller (the record layer's sequence number, big-endian).
type Cipher struct {
	key [KeySize]byte
}

func New(key []byte) *Cipher {
	c := &Cipher{}
	copy(c.key[:], key)
	return c
}

// computeMAC authenticates ad || len64_le(ad) || encrypted || len64_le(encrypted)
// under Poly1305 with the one-time key split into r (first 16 bytes) and
// s (last 16 bytes). The length trailers are little-endian 64-bit even
// though everything else in this record layer is big-endian: this is the
// draft-agl framing, not RFC 7539's padded variant.
func computeMAC(polyKey *[32]byte, encrypted, ad []byte) [16]byte {
	msg := make([]byte, 0, len(ad)+8+len(encrypted)+8)
	msg = append(msg, ad...)
	msg = appendLen64LE(msg, len(ad))
	msg = append(msg, encrypted...)
	msg = appendLen64LE(msg, len(encrypted))

	var r, s [16]byte
	copy(r[:], polyKey[0:16])
	copy(s[:], polyKey[16:32])
	return primcrypto.Poly1305(msg, &r, &s)
}

func appendLen64LE(b []byte, n int) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(n))
	return append(b, tmp[:]...)
}

// Encrypt returns ciphertext || tag for plaintext under nonce and ad.
// nonce must be the 8-byte ChaCha20 nonce (the record sequence number).
func (c *Cipher) Encrypt(nonce, plaintext, ad []byte) []byte {
	chacha := primcrypto.NewChaCha20(c.key[:], nonce)

	block0 := chacha.Next()
	var polyKey [32]byte
	copy(polyKey[:], block0[:32])

	ciphertext := chacha.Encrypt(plaintext)

	tag := computeMAC(&polyKey, ciphertext, ad)

	out := make([]byte, 0, len(ciphertext)+MACLen)
	out = append(out, ciphertext...)
	out = append(out, tag[:]...)
	return out
}

// Decrypt splits the trailing tag off ciphertextWithTag, decrypts
// unconditionally (so the caller's timing doesn't leak whether the tag
// matched), and only then compares tags in constant time. On mismatch
// the returned error's Kind is alerts.BadRecordMac and the plaintext must
// not be used.
func (c *Cipher) Decrypt(nonce, ciphertextWithTag, ad []byte) ([]byte, error) {
	if len(ciphertextWithTag) < MACLen {
		return nil, alerts.New(alerts.BadRecordMac, "encrypted record too short: %d", len(ciphertextWithTag))
	}

	ciphertext := ciphertextWithTag[:len(ciphertextWithTag)-MACLen]
	gotTag := ciphertextWithTag[len(ciphertextWithTag)-MACLen:]

	chacha := primcrypto.NewChaCha20(c.key[:], nonce)

	block0 := chacha.Next()
	var polyKey [32]byte
	copy(polyKey[:], block0[:32])

	// Decrypt before checking the tag: the same amount of work runs
	// whether or not the tag will turn out to match, so response timing
	// does not reveal the tag comparison's outcome.
	plaintext := chacha.Encrypt(ciphertext)

	wantTag := computeMAC(&polyKey, ciphertext, ad)

	var diff byte
	for i := 0; i < MACLen; i++ {
		diff |= gotTag[i] ^ wantTag[i]
	}
	if diff != 0 {
		return nil, alerts.New(alerts.BadRecordMac, "tag mismatch")
	}

	return plaintext, nil
}
