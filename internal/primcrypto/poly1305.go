package primcrypto

// int1305 represents an integer modulo 2^130-5 in radix-2^26, five limbs,
// each kept loosely reduced (< 2^32) between operations — the
// "lazy normalization" scheme from http://cr.yp.to/mac/poly1305-20050329.pdf.
type int1305 struct {
	v [5]uint32
}

func choose1305(flag uint32, a, b int1305) int1305 {
	var r int1305
	for i := 0; i < 5; i++ {
		r.v[i] = a.v[i] ^ (flag * (a.v[i] ^ b.v[i]))
	}
	return r
}

func (a int1305) add(b int1305) int1305 {
	var r int1305
	for i := 0; i < 5; i++ {
		r.v[i] = a.v[i] + b.v[i]
	}
	return r
}

func (a int1305) mult(b int1305) int1305 {
	b5 := [5]uint32{b.v[0] * 5, b.v[1] * 5, b.v[2] * 5, b.v[3] * 5, b.v[4] * 5}

	m := func(i, j int) uint64 { return uint64(a.v[i]) * uint64(b.v[j]) }
	m5 := func(i, j int) uint64 { return uint64(a.v[i]) * uint64(b5[j]) }

	v := [5]uint64{
		m(0, 0) + m5(1, 4) + m5(2, 3) + m5(3, 2) + m5(4, 1),
		m(0, 1) + m(1, 0) + m5(2, 4) + m5(3, 3) + m5(4, 2),
		m(0, 2) + m(1, 1) + m(2, 0) + m5(3, 4) + m5(4, 3),
		m(0, 3) + m(1, 2) + m(2, 1) + m(3, 0) + m5(4, 4),
		m(0, 4) + m(1, 3) + m(2, 2) + m(3, 1) + m(4, 0),
	}

	var carry uint64
	reduce := func(i int) {
		v[i] += carry
		carry = v[i] >> 26
		v[i] &= (1 << 26) - 1
	}

	reduce(0)
	reduce(1)
	reduce(2)
	reduce(3)
	reduce(4)

	carry *= 5
	reduce(0)
	reduce(1)
	reduce(2)
	reduce(3)
	reduce(4)

	carry *= 5
	reduce(0)
	reduce(1)
	reduce(2)
	reduce(3)
	reduce(4)

	return int1305{v: [5]uint32{
		uint32(v[0]), uint32(v[1]), uint32(v[2]), uint32(v[3]), uint32(v[4]),
	}}
}

func int1305FromBytes(msg *[16]byte) int1305 {
	b4 := func(i int, n uint) uint32 {
		return uint32(msg[i])>>n |
			uint32(msg[i+1])<<(8-n) |
			uint32(msg[i+2])<<(16-n) |
			(uint32(msg[i+3])&((1<<(2+n))-1))<<(24-n)
	}
	b3 := func(i int, n uint) uint32 {
		return uint32(msg[i])>>n | uint32(msg[i+1])<<(8-n) | uint32(msg[i+2])<<(16-n)
	}

	return int1305{v: [5]uint32{
		b4(0, 0),
		b4(3, 26*1-8*3),
		b4(6, 26*2-8*6),
		b4(9, 26*3-8*9),
		b3(13, 0),
	}}
}

// normalize reduces self into [0, p), assuming self is already bounded to
// at most one multiple of p above the canonical range (true after `mult`).
func (a int1305) normalize() int1305 {
	p5 := [5]uint64{5, 0, 0, 0, ((1 << 6) - 1) << 26}

	var ret int1305
	var carry uint64
	for i := 0; i < 4; i++ {
		v := uint64(a.v[i]) + p5[i] + carry
		carry = v >> 26
		ret.v[i] = uint32(v & ((1 << 26) - 1))
	}
	ret.v[4] = uint32(uint64(a.v[4]) + p5[4] + carry)

	isCaseB := ret.v[4] >> 31
	return choose1305(isCaseB, ret, a)
}

// Poly1305 computes the one-time MAC of msg under the key r (clamped
// here) and the AES (or, here, ChaCha20-block) mask s, per
// http://cr.yp.to/mac/poly1305-20050329.pdf.
func Poly1305(msg []byte, r, s *[16]byte) [16]byte {
	var rc [16]byte
	copy(rc[:], r[:])
	rc[3] &= 15
	rc[4] &= 252
	rc[7] &= 15
	rc[8] &= 252
	rc[11] &= 15
	rc[12] &= 252
	rc[15] &= 15

	rInt := int1305FromBytes(&rc)

	h := int1305{}
	chunks := (len(msg) + 15) / 16
	for i := 0; i < chunks; i++ {
		var m [16]byte
		mLen := 16
		if i == chunks-1 {
			mLen = len(msg) - 16*i
		}
		copy(m[:mLen], msg[i*16:i*16+mLen])

		c := int1305FromBytes(&m)
		flagPos := mLen * 8
		c.v[flagPos/26] |= 1 << uint(flagPos%26)

		h = c.add(h).mult(rInt)
	}

	h = h.normalize()

	b := func(i int, n uint) byte { return byte(h.v[i] >> n) }
	b2 := func(i int, n, m uint) byte {
		return byte((h.v[i] >> n) | (h.v[i+1]&((1<<m)-1))<<(8-m))
	}

	hBytes := [16]byte{
		b(0, 0), b(0, 8), b(0, 16), b2(0, 24, 6),
		b(1, 6), b(1, 14), b2(1, 22, 4),
		b(2, 4), b(2, 12), b2(2, 20, 2),
		b(3, 2), b(3, 10), b(3, 18),
		b(4, 0), b(4, 8), b(4, 16),
	}

	toU32 := func(a []byte, i int) uint32 {
		return uint32(a[i]) | uint32(a[i+1])<<8 | uint32(a[i+2])<<16 | uint32(a[i+3])<<24
	}
	h32 := [4]uint32{toU32(hBytes[:], 0), toU32(hBytes[:], 4), toU32(hBytes[:], 8), toU32(hBytes[:], 12)}
	s32 := [4]uint32{toU32(s[:], 0), toU32(s[:], 4), toU32(s[:], 8), toU32(s[:], 12)}

	var out32 [4]uint32
	var carry uint64
	for i := 0; i < 4; i++ {
		sum := uint64(h32[i]) + uint64(s32[i]) + carry
		out32[i] = uint32(sum)
		carry = sum >> 32
	}

	var ret [16]byte
	for i := 0; i < 4; i++ {
		ret[4*i+0] = byte(out32[i])
		ret[4*i+1] = byte(out32[i] >> 8)
		ret[4*i+2] = byte(out32[i] >> 16)
		ret[4*i+3] = byte(out32[i] >> 24)
	}

	return ret
}
