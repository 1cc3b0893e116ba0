package handshake

import "github.com/klutzy/suruga/internal/primcrypto"

// transcript accumulates the exact wire bytes (envelope included) of
// every handshake message sent or received, in order, so Finished
// verify-data can be computed over a SHA-256 digest of the conversation
// so far. original_source/src/client.rs keeps a running hasher rather
// than a buffer; internal/primcrypto's SHA256 is not incremental, so
// this buffers instead - handshake transcripts are a handful of
// kilobytes at most, well within what one hash call over the whole
// thing costs.
type transcript struct {
	buf []byte
}

func (t *transcript) write(msg []byte) {
	t.buf = append(t.buf, msg...)
}

func (t *transcript) sum() [32]byte {
	return primcrypto.SHA256(t.buf)
}
