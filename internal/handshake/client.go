// Package handshake drives the client side of the TLS 1.2 handshake
// restricted to ECDHE/P-256 + TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256:
// ClientHello -> ServerHello -> Certificate -> ServerKeyExchange ->
// [CertificateRequest] -> ServerHelloDone -> ClientKeyExchange ->
// ChangeCipherSpec -> Finished, then the server's ChangeCipherSpec ->
// Finished. Only CertificateRequest is optional.
//
// Grounded on original_source/src/handshake.rs (message catalogue,
// transcript accumulation) and original_source/src/client.rs (state
// ordering and key-derivation timing).
package handshake

import (
	"crypto/rand"
	"crypto/x509"
	"io"
	"log/slog"
	"time"

	"github.com/klutzy/suruga/internal/aead"
	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/certverify"
	"github.com/klutzy/suruga/internal/kex"
	"github.com/klutzy/suruga/internal/prf"
	"github.com/klutzy/suruga/internal/record"
	"github.com/klutzy/suruga/internal/wire"
)

// Config carries the handshake's tunable inputs. ServerName and Roots
// feed internal/certverify.VerifyChain; Rand and Now default to
// crypto/rand.Reader and time.Now and only need overriding in tests.
// Logger is nil-safe and defaults to a discard logger: the handshake
// driver never logs secret material, only message types and state names,
// matching the teacher's postalsys-Muti-Metroo-style optional structured
// logger.
type Config struct {
	ServerName string
	Roots      *x509.CertPool
	Rand       io.Reader
	Now        func() time.Time
	Logger     *slog.Logger
}

func (c Config) rand() io.Reader {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.Reader
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Result is the pair of directional ciphers the handshake derived. Run has
// already installed both on the record layer it was given; callers must
// not install them again, since that would reset the sequence counters.
type Result struct {
	ReadCipher  *aead.Cipher
	WriteCipher *aead.Cipher
	PeerLeaf    *x509.Certificate
}

const (
	masterSecretLen = 48
	keyBlockLen     = 2 * aead.KeySize // no MAC keys or explicit IVs: this suite is AEAD-only
)

func randomBytes(rng io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, alerts.Wrap(alerts.InternalError, err, "failed to read random bytes")
	}
	return buf, nil
}

func writeAndRecord(rw *record.Writer, t *transcript, msgType wire.HandshakeType, body []byte) error {
	envelope := wire.MarshalEnvelope(msgType, body)
	if err := rw.WriteData(record.HandshakeType, envelope); err != nil {
		return err
	}
	t.write(envelope)
	return nil
}

func readAndRecord(rr *record.Reader, t *transcript) (wire.Envelope, error) {
	env, err := rr.ReadHandshake()
	if err != nil {
		return env, err
	}
	t.write(wire.MarshalEnvelope(env.Type, env.Body))
	return env, nil
}

func expect(env wire.Envelope, want wire.HandshakeType) error {
	if env.Type != want {
		return alerts.New(alerts.UnexpectedMessage, "got %v, expected %v", env.Type, want)
	}
	return nil
}

// Run drives the full handshake over rw/rr (already wrapping the live
// transport) and returns the read/write ciphers for the application-data
// phase. rw/rr must not have a cipher installed yet; Run installs one
// exactly once on each, per spec.md §4.4's "each cipher activates
// exactly once" rule.
func Run(rw *record.Writer, rr *record.Reader, cfg Config) (*Result, error) {
	log := cfg.logger()
	t := &transcript{}

	clientRandomBytes, err := randomBytes(cfg.rand(), 32)
	if err != nil {
		return nil, err
	}
	var clientRandom wire.Random
	copy(clientRandom[:], clientRandomBytes)

	hello := wire.ClientHello{
		Version:        wire.TLS12,
		Random:         clientRandom,
		SessionID:      nil,
		CipherSuites:   OfferedSuiteIDs(),
		Compressions:   []wire.CompressionMethod{wire.CompressionNull},
		EllipticCurves: []wire.NamedCurve{wire.Secp256r1},
		ECPointFormats: []wire.ECPointFormat{wire.UncompressedPoint},
	}
	if err := writeAndRecord(rw, t, wire.ClientHelloType, hello.Marshal()); err != nil {
		return nil, err
	}
	log.Debug("handshake: sent ClientHello")

	env, err := readAndRecord(rr, t)
	if err != nil {
		return nil, err
	}
	if err := expect(env, wire.ServerHelloType); err != nil {
		return nil, err
	}
	serverHello, err := wire.ParseServerHello(env.Body)
	if err != nil {
		return nil, err
	}
	if serverHello.Version != wire.TLS12 {
		return nil, alerts.New(alerts.IllegalParameter, "unsupported ServerHello.version %+v", serverHello.Version)
	}
	if _, err := NegotiateServerChoice(serverHello.CipherSuite); err != nil {
		return nil, err
	}
	serverRandom := serverHello.Random
	log.Debug("handshake: received ServerHello")

	env, err = readAndRecord(rr, t)
	if err != nil {
		return nil, err
	}
	if err := expect(env, wire.CertificateType); err != nil {
		return nil, err
	}
	certs, err := wire.ParseCertificateList(env.Body)
	if err != nil {
		return nil, err
	}
	leaf, err := certverify.VerifyChain(certs, cfg.ServerName, cfg.Roots, cfg.now())
	if err != nil {
		return nil, err
	}
	log.Debug("handshake: received Certificate", "chain_len", len(certs))

	env, err = readAndRecord(rr, t)
	if err != nil {
		return nil, err
	}
	if err := expect(env, wire.ServerKeyExchange); err != nil {
		return nil, err
	}
	skx, err := wire.ParseServerKeyExchangeECDHE(env.Body)
	if err != nil {
		return nil, err
	}
	if err := certverify.VerifyServerKeyExchangeSignature(leaf, [32]byte(clientRandom), [32]byte(serverRandom), skx); err != nil {
		return nil, err
	}
	serverPublic, err := kex.DecodeServerPublicKey(skx)
	if err != nil {
		return nil, err
	}
	log.Debug("handshake: received ServerKeyExchange")

	env, err = readAndRecord(rr, t)
	if err != nil {
		return nil, err
	}
	if env.Type == wire.CertificateRequest {
		// Accepted but ignored: this client never offers a client
		// certificate (spec.md §4.5).
		if err := wire.SkipCertificateRequest(env.Body); err != nil {
			return nil, err
		}
		env, err = readAndRecord(rr, t)
		if err != nil {
			return nil, err
		}
	}
	if err := expect(env, wire.ServerHelloDone); err != nil {
		return nil, err
	}
	if len(env.Body) != 0 {
		return nil, alerts.New(alerts.DecodeError, "ServerHelloDone carries a non-empty body")
	}
	log.Debug("handshake: received ServerHelloDone")

	exchange, err := kex.New(cfg.rand())
	if err != nil {
		return nil, err
	}
	preMaster := exchange.PreMasterSecret(serverPublic)

	masterSeed := append(append([]byte("master secret"), clientRandom[:]...), serverRandom[:]...)
	masterSecret := prf.New(preMaster, masterSeed).GetBytes(masterSecretLen)

	if err := writeAndRecord(rw, t, wire.ClientKeyExchange, wire.MarshalClientKeyExchangeECDHE(exchange.PublicKey)); err != nil {
		return nil, err
	}

	keyBlockSeed := append(append([]byte("key expansion"), serverRandom[:]...), clientRandom[:]...)
	keyBlock := prf.New(masterSecret, keyBlockSeed).GetBytes(keyBlockLen)
	clientWriteKey := keyBlock[:aead.KeySize]
	serverWriteKey := keyBlock[aead.KeySize:]

	if err := rw.WriteChangeCipherSpec(); err != nil {
		return nil, err
	}
	writeCipher := aead.New(clientWriteKey)
	rw.SetCipher(writeCipher)

	clientVerifyData := finishedVerifyData(masterSecret, "client finished", t.sum())
	if err := writeAndRecord(rw, t, wire.FinishedType, wire.MarshalFinished(clientVerifyData)); err != nil {
		return nil, err
	}

	if err := rr.ReadChangeCipherSpec(); err != nil {
		return nil, err
	}
	readCipher := aead.New(serverWriteKey)
	rr.SetCipher(readCipher)

	expectedServerVerifyData := finishedVerifyData(masterSecret, "server finished", t.sum())

	env, err = readAndRecord(rr, t)
	if err != nil {
		return nil, err
	}
	if err := expect(env, wire.FinishedType); err != nil {
		return nil, err
	}
	serverVerifyData, err := wire.ParseFinished(env.Body)
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual12(serverVerifyData, expectedServerVerifyData) {
		return nil, alerts.New(alerts.DecryptError, "Finished verify_data mismatch")
	}
	log.Debug("handshake: verified server Finished, session open")

	return &Result{ReadCipher: readCipher, WriteCipher: writeCipher, PeerLeaf: leaf}, nil
}

func finishedVerifyData(masterSecret []byte, label string, transcriptHash [32]byte) (out [wire.VerifyDataLen]byte) {
	seed := append([]byte(label), transcriptHash[:]...)
	copy(out[:], prf.New(masterSecret, seed).GetBytes(wire.VerifyDataLen))
	return out
}

func constantTimeEqual12(a, b [wire.VerifyDataLen]byte) bool {
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
