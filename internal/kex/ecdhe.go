// Package kex implements the ECDHE key exchange this suite's
// ServerKeyExchange/ClientKeyExchange pair performs: decode the server's
// P-256 public point, sample a fresh client scalar, and derive the
// pre-master secret as the x-coordinate of the shared point.
//
// Grounded on original_source/src/cipher/ecdhe.rs's
// EllipticDiffieHellman::compute_keys.
package kex

import (
	"crypto/rand"
	"io"

	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/primcrypto"
	"github.com/klutzy/suruga/internal/wire"
)

// Exchange holds the client's ephemeral scalar and its public point, kept
// around only long enough to derive the pre-master secret once the
// server's public point is known.
type Exchange struct {
	scalar    primcrypto.Int256
	PublicKey []byte // this client's SEC1 uncompressed public point, 0x04 || gx || gy
}

// New samples a fresh client scalar and computes the corresponding public
// point g^x for secp256r1. The scalar is rejection-sampled against the
// field prime P256 (not the curve order n) the same way original_source/src/cipher/ecdhe.rs's
// get_random_x does: 32 uniformly random bytes are accepted only if they
// already represent a canonical field element (ReduceOnce(0) is a no-op),
// which the Rust original notes is not exactly uniform over [0, n) but is
// the scheme this client was built to replicate.
func New(rng io.Reader) (*Exchange, error) {
	scalar, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}

	public := primcrypto.G256.MultScalar(scalar).Normalize()

	return &Exchange{
		scalar:    scalar,
		PublicKey: public.ToUncompressedBytes(),
	}, nil
}

func randomScalar(rng io.Reader) (primcrypto.Int256, error) {
	var buf [32]byte
	for {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return primcrypto.Int256{}, alerts.Wrap(alerts.InternalError, err, "failed to read random scalar")
		}
		x, ok := primcrypto.Int256FromBytes(buf[:])
		if !ok {
			continue
		}
		if x.ReduceOnce(0).Compare(x) == 0 {
			return x, nil
		}
	}
}

// DefaultRand is crypto/rand.Reader, the source spec.md §6 requires
// ("a source of cryptographically secure random bytes").
var DefaultRand = rand.Reader

// DecodeServerPublicKey validates and decodes the server's ECDHE public
// point out of a parsed ServerKeyExchange body. Any failure - wrong
// curve, malformed point, off-curve point - is IllegalParameter per
// spec.md §4.5.
func DecodeServerPublicKey(skx wire.ServerKeyExchangeECDHE) (primcrypto.NPoint256, error) {
	if skx.Curve != wire.Secp256r1 {
		return primcrypto.NPoint256{}, alerts.New(alerts.IllegalParameter, "unsupported named_curve %d", skx.Curve)
	}
	point, ok := primcrypto.NPoint256FromUncompressedBytes(skx.PublicKey)
	if !ok {
		return primcrypto.NPoint256{}, alerts.New(alerts.IllegalParameter, "invalid or off-curve ECDHE public point")
	}
	return point, nil
}

// PreMasterSecret computes (gy)^x and returns its x-coordinate, big
// endian, 32 bytes - the shared secret original_source/src/cipher/ecdhe.rs
// calls `gxy.x.to_bytes()`.
func (e *Exchange) PreMasterSecret(serverPublic primcrypto.NPoint256) []byte {
	shared := serverPublic.ToPoint().MultScalar(e.scalar).Normalize()
	return shared.X.ToBytes()
}
