package prf

import (
	"bytes"
	"testing"
)

// Mirrors original_source/src/cipher/prf.rs's test_get_bytes: requesting
// bytes in different chunk sizes from fresh PRF instances (same secret,
// same seed) must produce the same overall stream.
func TestGetBytesChunkingIsConsistent(t *testing.T) {
	ret1 := func() []byte {
		p := New(nil, nil)
		var out []byte
		for i := 0; i < 100; i++ {
			out = append(out, p.GetBytes(1)...)
		}
		return out
	}()

	ret2 := New(nil, nil).GetBytes(100)

	if !bytes.Equal(ret1, ret2) {
		t.Fatalf("chunked-by-1 stream diverges from single 100-byte request")
	}

	ret3 := func() []byte {
		p := New(nil, nil)
		out := p.GetBytes(33)
		out = append(out, p.GetBytes(33)...)
		out = append(out, p.GetBytes(100-33*2)...)
		return out
	}()

	if !bytes.Equal(ret1, ret3) {
		t.Fatalf("chunked-by-33 stream diverges from single 100-byte request")
	}
}
