package primcrypto

// P-256 field and point arithmetic, constant-time throughout (no data
// dependent branching on secret values — every conditional is a
// branch-free `choose`). Ported from
// _examples/original_source/src/crypto/p256.rs, itself following
// http://www.nsa.gov/ia/_files/nist-routines.pdf and
// http://point-at-infinity.org/ecc/nisttv.
//
// This is deliberately not the fastest possible P-256: it is "constantly
// slow" by construction, trading performance for a uniform operation
// count regardless of secret bit patterns.

const limbs256 = 8

// Int256 holds a field element mod P256 in radix-2^32, little-endian
// limb order: value = v[0] + 2^32 v[1] + ... + 2^224 v[7].
type Int256 struct {
	v [limbs256]uint32
}

// P256Prime is P = 2^256 - 2^224 + 2^192 + 2^96 - 1.
var P256Prime = Int256{v: [limbs256]uint32{
	0xffffffff, 0xffffffff, 0xffffffff, 0x00000000,
	0x00000000, 0x00000000, 0x00000001, 0xffffffff,
}}

var zero256 = Int256{}
var one256 = Int256{v: [limbs256]uint32{1, 0, 0, 0, 0, 0, 0, 0}}

// Zero256 and One256 are the additive and multiplicative identities.
func Zero256() Int256 { return zero256 }
func One256() Int256  { return one256 }

// G256 is the P-256 base point.
var G256 = Point256{
	x: Int256{v: [limbs256]uint32{
		0xd898c296, 0xf4a13945, 0x2deb33a0, 0x77037d81,
		0x63a440f2, 0xf8bce6e5, 0xe12c4247, 0x6b17d1f2,
	}},
	y: Int256{v: [limbs256]uint32{
		0x37bf51f5, 0xcbb64068, 0x6b315ece, 0x2bce3357,
		0x7c0f9e16, 0x8ee7eb4a, 0xfe1a7f9b, 0x4fe342e2,
	}},
	z: one256,
}

// B256 is the curve's b coefficient: y^2 = x^3 - 3x + b.
var B256 = Int256{v: [limbs256]uint32{
	0x27d2604b, 0x3bce3c3e, 0xcc53b0f6, 0x651d06b0,
	0x769886bc, 0xb3ebbd55, 0xaa3a93e7, 0x5ac635d8,
}}

var infinity256 = Point256{x: one256, y: one256, z: zero256}

// Compare returns 0 if a == b, 1 otherwise.
func (a Int256) Compare(b Int256) uint32 {
	var diff uint32
	for i := 0; i < limbs256; i++ {
		diff |= a.v[i] ^ b.v[i]
	}
	diff |= diff >> 16
	diff |= diff >> 8
	diff |= diff >> 4
	diff |= diff >> 2
	diff |= diff >> 1
	return diff & 1
}

// Choose256 returns a if flag == 0, b if flag == 1 (flag must be 0 or 1).
func Choose256(flag uint32, a, b Int256) Int256 {
	var v [limbs256]uint32
	for i := 0; i < limbs256; i++ {
		v[i] = a.v[i] ^ (flag * (a.v[i] ^ b.v[i]))
	}
	return Int256{v: v}
}

func (a Int256) addNoReduce(b Int256) (Int256, uint32) {
	var v Int256
	var carry uint64
	for i := 0; i < limbs256; i++ {
		add := uint64(a.v[i]) + uint64(b.v[i]) + carry
		v.v[i] = uint32(add)
		carry = add >> 32
	}
	return v, uint32(carry)
}

func (a Int256) subNoReduce(b Int256) (Int256, uint32) {
	var v Int256
	var carrySub uint64
	for i := 0; i < limbs256; i++ {
		sub := uint64(a.v[i]) - uint64(b.v[i]) - carrySub
		carrySub = sub >> 63
		v.v[i] = uint32(sub)
	}
	return v, uint32(carrySub)
}

// ReduceOnce returns (self + carry*2^256) mod P256, assuming that value
// is already known to be less than 2*P256.
func (a Int256) ReduceOnce(carry uint32) Int256 {
	v, carrySub := a.subNoReduce(P256Prime)
	chooseNew := carry ^ carrySub
	return Choose256(chooseNew, v, a)
}

func (a Int256) Add(b Int256) Int256 {
	v, carry := a.addNoReduce(b)
	return v.ReduceOnce(carry)
}

func (a Int256) Double() Int256 { return a.Add(a) }

func (a Int256) Sub(b Int256) Int256 {
	v, carrySub := a.subNoReduce(b)
	v2, _ := v.addNoReduce(P256Prime)
	return Choose256(carrySub, v, v2)
}

// Mult computes a*b mod P256 via schoolbook multiplication followed by
// the NIST fast-reduction algorithm for P-256 (the named terms below —
// t, s1-s4, d1-d4 — match the routine's own naming).
func (a Int256) Mult(b Int256) Int256 {
	var w [limbs256 * 2]uint64
	for i := 0; i < limbs256; i++ {
		for j := 0; j < limbs256; j++ {
			ij := i + j
			vij := uint64(a.v[i]) * uint64(b.v[j])
			vijLow := vij & 0xffffffff
			vijHigh := vij >> 32
			wij := w[ij] + vijLow
			wijLow := wij & 0xffffffff
			wijHigh := vijHigh + (wij >> 32)
			w[ij] = wijLow
			w[ij+1] += wijHigh
		}
	}

	var v [limbs256 * 2]uint32
	var carry uint64
	for i := 0; i < limbs256*2; i++ {
		x := w[i] + carry
		v[i] = uint32(x)
		carry = x >> 32
	}

	var buf Int256
	for i := 0; i < limbs256; i++ {
		buf.v[i] = v[i]
	}
	t := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 5; i++ {
		buf.v[i+3] = v[i+11]
	}
	s1 := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 4; i++ {
		buf.v[i+3] = v[i+12]
	}
	s2 := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 3; i++ {
		buf.v[i] = v[i+8]
	}
	buf.v[6] = v[14]
	buf.v[7] = v[15]
	s3 := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 3; i++ {
		buf.v[i] = v[i+9]
		buf.v[i+3] = v[i+13]
	}
	buf.v[6] = v[13]
	buf.v[7] = v[8]
	s4 := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 3; i++ {
		buf.v[i] = v[i+11]
	}
	buf.v[6] = v[8]
	buf.v[7] = v[10]
	d1 := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 4; i++ {
		buf.v[i] = v[i+12]
	}
	buf.v[6] = v[9]
	buf.v[7] = v[11]
	d2 := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 3; i++ {
		buf.v[i] = v[i+13]
		buf.v[i+3] = v[i+8]
	}
	buf.v[7] = v[12]
	d3 := buf.ReduceOnce(0)

	buf = Int256{}
	for i := 0; i < 3; i++ {
		buf.v[i+3] = v[i+9]
	}
	buf.v[7] = v[13]
	buf.v[0] = v[14]
	buf.v[1] = v[15]
	d4 := buf.ReduceOnce(0)

	r := t.Add(s1.Double()).Add(s2.Double()).Add(s3).Add(s4)
	r = r.Sub(d1.Add(d2).Add(d3).Add(d4))
	return r
}

func (a Int256) Square() Int256 { return a.Mult(a) }

// Inverse computes self^(P256-2) = self^-1 mod P256 via an addition
// chain over the Fermat exponent, matching the original routine's
// z2/z4/.../z192 ladder exactly.
func (a Int256) Inverse() Int256 {
	squareN := func(z Int256, n int) Int256 {
		y := z
		for i := 0; i < n; i++ {
			y = y.Square()
		}
		return y
	}
	zN := func(z Int256, n int) Int256 {
		y := squareN(z, n)
		return y.Mult(z)
	}
	z1 := func(z Int256) Int256 {
		return z.Square().Mult(a)
	}

	z2 := zN(a, 1)
	z4 := zN(z2, 2)
	z8 := zN(z4, 4)
	z16 := zN(z8, 8)
	z32 := zN(z16, 16)

	z5 := z1(z4)
	z10 := zN(z5, 5)
	z11 := z1(z10)

	z22 := zN(z11, 11)
	z23 := z1(z22)

	z46 := zN(z23, 23)
	z47 := z1(z46)

	z94 := zN(z47, 47)
	z95 := z1(z94)

	y96_2 := z95.Square()
	z96 := y96_2.Mult(a)

	z192 := zN(z96, 96)

	y256_224 := squareN(z32, 224)

	return y256_224.Mult(z192).Mult(y96_2)
}

// DivideBy2 computes self/2 mod P256.
func (a Int256) DivideBy2() Int256 {
	isOdd := a.v[0] & 1

	var halfEven Int256
	for i := 0; i < limbs256-1; i++ {
		halfEven.v[i] = (a.v[i] >> 1) | ((a.v[i+1] & 1) << 31)
	}
	halfEven.v[limbs256-1] = a.v[limbs256-1] >> 1

	var halfOdd Int256
	selfP, carry := a.addNoReduce(P256Prime)
	for i := 0; i < limbs256-1; i++ {
		halfOdd.v[i] = (selfP.v[i] >> 1) | ((selfP.v[i+1] & 1) << 31)
	}
	halfOdd.v[limbs256-1] = (selfP.v[limbs256-1] >> 1) | (carry << 31)

	return Choose256(isOdd, halfEven, halfOdd)
}

// ToBytes encodes self as 32 big-endian bytes.
func (a Int256) ToBytes() []byte {
	b := make([]byte, 32)
	for i := 0; i < limbs256; i++ {
		vi := a.v[limbs256-1-i]
		for j := 0; j < 4; j++ {
			b[i*4+j] = byte(vi >> uint(8*(3-j)))
		}
	}
	return b
}

// Int256FromBytes decodes 32 big-endian bytes. It does not reduce mod
// P256 or validate the value is in range — callers that need a
// canonical field element must check that themselves (as ECDHE's
// rejection sampling does).
func Int256FromBytes(b []byte) (Int256, bool) {
	if len(b) != 32 {
		return Int256{}, false
	}
	var x Int256
	for i := 0; i < limbs256; i++ {
		var vi uint32
		for j := 0; j < 4; j++ {
			vi |= uint32(b[i*4+j]) << uint(8*(3-j))
		}
		x.v[limbs256-1-i] = vi
	}
	return x, true
}

// Point256 is a point in Jacobian coordinates: (x, y, z) represents
// affine (x/z^2, y/z^3). The identity is (1, 1, 0).
type Point256 struct {
	x, y, z Int256
}

func choosePoint256(flag uint32, a, b Point256) Point256 {
	return Point256{
		x: Choose256(flag, a.x, b.x),
		y: Choose256(flag, a.y, b.y),
		z: Choose256(flag, a.z, b.z),
	}
}

// Normalize converts to affine coordinates.
func (p Point256) Normalize() NPoint256 {
	z2 := p.z.Square()
	z3 := p.z.Mult(z2)
	x := p.x.Mult(z2.Inverse())
	y := p.y.Mult(z3.Inverse())
	return NPoint256{X: x, Y: y}
}

// Double computes p+p. p.z must be nonzero unless p is the identity.
func (p Point256) Double() Point256 {
	z2 := p.z.Square()
	y2 := p.y.Square()

	a := func() Int256 {
		xSubZ2 := p.x.Sub(z2)
		xAddZ2 := p.x.Add(z2)
		mult := xAddZ2.Mult(xSubZ2)
		return mult.Add(mult).Add(mult)
	}()

	b := p.x.Mult(y2)
	b2 := b.Add(b)
	b4 := b2.Add(b2)
	b8 := b4.Add(b4)

	xNew := a.Square().Sub(b8)

	yNew := func() Int256 {
		y4 := y2.Square()
		y4x2 := y4.Add(y4)
		y4x4 := y4x2.Add(y4x2)
		y4x8 := y4x4.Add(y4x4)
		return a.Mult(b4.Sub(xNew)).Sub(y4x8)
	}()

	zNew := p.y.Add(p.z).Square().Sub(z2.Add(y2))

	ret := Point256{x: xNew, y: yNew, z: zNew}

	selfNotInfty := p.z.Compare(zero256)
	return choosePoint256(selfNotInfty, infinity256, ret)
}

// Add computes p+b in constant time, handling p==b, p==-b, and either
// operand being the identity without branching on secret state.
func (p Point256) Add(b Point256) Point256 {
	selfIsZero := p.z.Compare(zero256)
	bIsZero := b.z.Compare(zero256)

	z2 := p.z.Square()
	z3 := p.z.Mult(z2)
	bz2 := b.z.Square()
	bz3 := b.z.Mult(bz2)

	x := p.x.Mult(bz2)
	y := p.y.Mult(bz3)
	bx := b.x.Mult(z2)
	by := b.y.Mult(z3)

	xdiff := x.Sub(bx)
	xdiff2 := xdiff.Square()
	xdiff3 := xdiff.Mult(xdiff2)

	ydiff := y.Sub(by)
	ydiff2 := ydiff.Square()

	xsum := x.Add(bx)
	ysum := y.Add(by)

	e := xsum.Mult(xdiff2)

	xNew := ydiff2.Sub(e)
	xNew2 := xNew.Add(xNew)

	yNew := func() Int256 {
		t4 := ysum.Mult(xdiff3)
		t5 := ydiff.Mult(e.Sub(xNew2))
		return t5.Sub(t4).DivideBy2()
	}()

	zNew := p.z.Mult(b.z).Mult(xdiff)

	xdiffNonzero := xdiff.Compare(zero256)
	ydiffNonzero := ydiff.Compare(zero256)

	ret := Point256{x: xNew, y: yNew, z: zNew}

	double := p.Double()
	ret = choosePoint256(xdiffNonzero|ydiffNonzero, double, ret)
	ret = choosePoint256(xdiffNonzero|(1-ydiffNonzero), infinity256, ret)
	ret = choosePoint256(selfIsZero, b, ret)
	ret = choosePoint256(bIsZero, p, ret)

	return ret
}

// MultScalar computes n*p via a fixed-iteration, branch-free
// double-and-add ladder over all 256 bits of n.
func (p Point256) MultScalar(n Int256) Point256 {
	ret := infinity256
	for i := limbs256 - 1; i >= 0; i-- {
		for j := 31; j >= 0; j-- {
			bit := (n.v[i] >> uint(j)) & 1
			ret2 := ret.Double()
			ret3 := ret2.Add(p)
			ret = choosePoint256(bit, ret2, ret3)
		}
	}
	return ret
}

// NPoint256 is a point in affine coordinates.
type NPoint256 struct {
	X, Y Int256
}

// ToPoint lifts an affine point back to Jacobian coordinates (z=1).
func (p NPoint256) ToPoint() Point256 {
	return Point256{x: p.X, y: p.Y, z: one256}
}

// NPoint256FromUncompressedBytes decodes the SEC1 uncompressed point
// format (0x04 || X || Y) and checks the point lies on the curve
// y^2 = x^3 - 3x + B; it returns false for malformed or off-curve input.
func NPoint256FromUncompressedBytes(data []byte) (NPoint256, bool) {
	if len(data) != 1+32*2 {
		return NPoint256{}, false
	}
	if data[0] != 0x04 {
		return NPoint256{}, false
	}

	x, ok := Int256FromBytes(data[1 : 32+1])
	if !ok {
		return NPoint256{}, false
	}
	y, ok := Int256FromBytes(data[1+32 : 1+32*2])
	if !ok {
		return NPoint256{}, false
	}

	y2 := y.Square()
	lhs := y2.Add(x.Double().Add(x))

	x3 := x.Square().Mult(x)
	rhs := x3.Add(B256)

	if lhs.Compare(rhs) != 0 {
		return NPoint256{}, false
	}

	return NPoint256{X: x, Y: y}, true
}

// ToUncompressedBytes encodes self as 0x04 || X || Y, big-endian.
func (p NPoint256) ToUncompressedBytes() []byte {
	b := make([]byte, 0, 1+32*2)
	b = append(b, 0x04)
	b = append(b, p.X.ToBytes()...)
	b = append(b, p.Y.ToBytes()...)
	return b
}
