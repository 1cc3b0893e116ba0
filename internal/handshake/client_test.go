package handshake

import (
	"bytes"
	"crypto"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/cryptobyte"

	"github.com/klutzy/suruga/internal/aead"
	"github.com/klutzy/suruga/internal/prf"
	"github.com/klutzy/suruga/internal/record"
	"github.com/klutzy/suruga/internal/wire"
)

func generateSelfSignedServerCert(t *testing.T, commonName string) (der []byte, key *rsa.PrivateKey, notBefore time.Time) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	notBefore = time.Now().Add(-time.Hour)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     []string{commonName},
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
	}
	der, err = x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der, key, notBefore
}

func marshalServerHello(sh wire.ServerHello) []byte {
	var b cryptobyte.Builder
	b.AddUint8(sh.Version.Major)
	b.AddUint8(sh.Version.Minor)
	b.AddBytes(sh.Random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(sh.SessionID)
	})
	b.AddUint16(uint16(sh.CipherSuite))
	b.AddUint8(uint8(sh.Compression))
	return b.BytesOrPanic()
}

func marshalCertificateList(der []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(der)
		})
	})
	return b.BytesOrPanic()
}

// marshalServerKeyExchangeECDHE returns the ServerKeyExchange body along
// with rawParams (curve_params || public), exactly what
// wire.ParseServerKeyExchangeECDHE's RawParams field captures, needed
// here to compute the same signature input the client will verify.
func marshalServerKeyExchangeECDHE(pub, sig []byte) (body, rawParams []byte) {
	var params cryptobyte.Builder
	params.AddUint8(3) // named_curve tag
	params.AddUint16(uint16(wire.Secp256r1))
	params.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(pub)
	})
	rawParams = params.BytesOrPanic()

	var b cryptobyte.Builder
	b.AddBytes(rawParams)
	b.AddUint8(uint8(wire.HashSHA256))
	b.AddUint8(uint8(wire.SigRSA))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(sig)
	})
	return b.BytesOrPanic(), rawParams
}

func clientHelloRandom(body []byte) (r [32]byte, ok bool) {
	if len(body) < 34 {
		return r, false
	}
	copy(r[:], body[2:34])
	return r, true
}

func parseClientKeyExchangeECDHE(body []byte) ([]byte, bool) {
	s := cryptobyte.String(body)
	var pub cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&pub) {
		return nil, false
	}
	return []byte(pub), true
}

// runFakeServer drives just enough of a standards-conforming TLS 1.2
// server handshake (plain crypto/ecdh + crypto/rsa, not this module's own
// primitives) to interoperate with Run end to end over a real net.Conn,
// exercising the client state machine the way spec.md's loopback
// integration scenario calls for.
func runFakeServer(conn net.Conn, certDER []byte, key *rsa.PrivateKey) error {
	rw := record.NewWriter(conn)
	rr := record.NewReader(conn)
	tr := &transcript{}

	env, err := readAndRecord(rr, tr)
	if err != nil {
		return err
	}
	if env.Type != wire.ClientHelloType {
		return errf("expected ClientHello, got %v", env.Type)
	}
	clientRandom, ok := clientHelloRandom(env.Body)
	if !ok {
		return errf("truncated ClientHello")
	}

	var serverRandom [32]byte
	if _, err := rand.Read(serverRandom[:]); err != nil {
		return err
	}
	sh := wire.ServerHello{
		Version:     wire.TLS12,
		Random:      serverRandom,
		CipherSuite: wire.TLSEcdheRsaWithChaCha20Poly1305SHA256,
		Compression: wire.CompressionNull,
	}
	if err := writeAndRecord(rw, tr, wire.ServerHelloType, marshalServerHello(sh)); err != nil {
		return err
	}
	if err := writeAndRecord(rw, tr, wire.CertificateType, marshalCertificateList(certDER)); err != nil {
		return err
	}

	serverKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	serverPub := serverKey.PublicKey().Bytes()

	_, rawParams := marshalServerKeyExchangeECDHE(serverPub, nil)
	signed := make([]byte, 0, 64+len(rawParams))
	signed = append(signed, clientRandom[:]...)
	signed = append(signed, serverRandom[:]...)
	signed = append(signed, rawParams...)
	digest := sha256.Sum256(signed)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return err
	}
	skxBody, _ := marshalServerKeyExchangeECDHE(serverPub, sig)
	if err := writeAndRecord(rw, tr, wire.ServerKeyExchange, skxBody); err != nil {
		return err
	}
	if err := writeAndRecord(rw, tr, wire.ServerHelloDone, nil); err != nil {
		return err
	}

	env, err = readAndRecord(rr, tr)
	if err != nil {
		return err
	}
	if env.Type != wire.ClientKeyExchange {
		return errf("expected ClientKeyExchange, got %v", env.Type)
	}
	clientPubBytes, ok := parseClientKeyExchangeECDHE(env.Body)
	if !ok {
		return errf("truncated ClientKeyExchange")
	}
	clientPub, err := ecdh.P256().NewPublicKey(clientPubBytes)
	if err != nil {
		return err
	}
	preMaster, err := serverKey.ECDH(clientPub)
	if err != nil {
		return err
	}

	masterSeed := append(append([]byte("master secret"), clientRandom[:]...), serverRandom[:]...)
	masterSecret := prf.New(preMaster, masterSeed).GetBytes(48)

	keyBlockSeed := append(append([]byte("key expansion"), serverRandom[:]...), clientRandom[:]...)
	keyBlock := prf.New(masterSecret, keyBlockSeed).GetBytes(2 * aead.KeySize)
	clientWriteKey := keyBlock[:aead.KeySize]
	serverWriteKey := keyBlock[aead.KeySize:]

	if err := rr.ReadChangeCipherSpec(); err != nil {
		return err
	}
	rr.SetCipher(aead.New(clientWriteKey))

	expectedClientVerify := finishedVerifyData(masterSecret, "client finished", tr.sum())
	env, err = readAndRecord(rr, tr)
	if err != nil {
		return err
	}
	if env.Type != wire.FinishedType {
		return errf("expected client Finished, got %v", env.Type)
	}
	clientVerify, err := wire.ParseFinished(env.Body)
	if err != nil {
		return err
	}
	if !constantTimeEqual12(clientVerify, expectedClientVerify) {
		return errf("client Finished verify_data mismatch")
	}

	if err := rw.WriteChangeCipherSpec(); err != nil {
		return err
	}
	rw.SetCipher(aead.New(serverWriteKey))
	serverVerify := finishedVerifyData(masterSecret, "server finished", tr.sum())
	if err := writeAndRecord(rw, tr, wire.FinishedType, wire.MarshalFinished(serverVerify)); err != nil {
		return err
	}

	data, err := rr.ReadApplicationData()
	if err != nil {
		return err
	}
	if string(data) != "ping" {
		return errf("got application data %q, want \"ping\"", data)
	}
	return rw.WriteApplicationData([]byte("pong"))
}

func errf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func TestHandshakeLoopbackIntegration(t *testing.T) {
	certDER, key, notBefore := generateSelfSignedServerCert(t, "example.test")
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(cert)

	clientConn, serverConn := net.Pipe()
	serverErr := make(chan error, 1)
	go func() { serverErr <- runFakeServer(serverConn, certDER, key) }()

	rw := record.NewWriter(clientConn)
	rr := record.NewReader(clientConn)
	cfg := Config{
		ServerName: "example.test",
		Roots:      roots,
		Now:        func() time.Time { return notBefore.Add(time.Minute) },
	}

	result, err := Run(rw, rr, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ReadCipher == nil || result.WriteCipher == nil {
		t.Fatal("Run did not derive both directional ciphers")
	}
	if result.PeerLeaf.Subject.CommonName != "example.test" {
		t.Fatalf("unexpected peer leaf: %v", result.PeerLeaf.Subject)
	}

	if err := rw.WriteApplicationData([]byte("ping")); err != nil {
		t.Fatalf("WriteApplicationData: %v", err)
	}
	reply, err := rr.ReadApplicationData()
	if err != nil {
		t.Fatalf("ReadApplicationData: %v", err)
	}
	if !bytes.Equal(reply, []byte("pong")) {
		t.Fatalf("got %q, want \"pong\"", reply)
	}

	if err := <-serverErr; err != nil {
		t.Fatalf("fake server: %v", err)
	}
}

func TestHandshakeRejectsUntrustedServer(t *testing.T) {
	certDER, key, notBefore := generateSelfSignedServerCert(t, "example.test")

	clientConn, serverConn := net.Pipe()
	serverErr := make(chan error, 1)
	go func() { serverErr <- runFakeServer(serverConn, certDER, key) }()

	rw := record.NewWriter(clientConn)
	rr := record.NewReader(clientConn)
	cfg := Config{
		ServerName: "example.test",
		Roots:      x509.NewCertPool(), // empty: nothing trusts this leaf
		Now:        func() time.Time { return notBefore.Add(time.Minute) },
	}

	_, err := Run(rw, rr, cfg)
	if err == nil {
		t.Fatal("expected Run to fail against an untrusted leaf")
	}
	clientConn.Close()
	serverConn.Close()
	<-serverErr
}
