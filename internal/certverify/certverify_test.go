package certverify

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/wire"
)

func selfSignedLeaf(t *testing.T, commonName string) (der []byte, key *rsa.PrivateKey, notBefore, notAfter time.Time) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	notBefore = time.Now().Add(-time.Hour)
	notAfter = notBefore.Add(24 * time.Hour)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     []string{commonName},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
	}

	der, err = x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der, key, notBefore, notAfter
}

func TestVerifyChainAcceptsTrustedSelfSigned(t *testing.T) {
	der, _, notBefore, _ := selfSignedLeaf(t, "example.test")

	roots := x509.NewCertPool()
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	roots.AddCert(cert)

	leaf, err := VerifyChain([][]byte{der}, "example.test", roots, notBefore.Add(time.Minute))
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if leaf.Subject.CommonName != "example.test" {
		t.Fatalf("unexpected leaf: %v", leaf.Subject)
	}
}

func TestVerifyChainRejectsUntrustedRoot(t *testing.T) {
	der, _, notBefore, _ := selfSignedLeaf(t, "example.test")

	// empty pool: nothing trusts this self-signed cert
	roots := x509.NewCertPool()
	_, err := VerifyChain([][]byte{der}, "example.test", roots, notBefore.Add(time.Minute))
	if err == nil {
		t.Fatal("expected verification failure against an empty root pool")
	}
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.DecryptError {
		t.Fatalf("got %v, want DecryptError", err)
	}
}

func TestVerifyChainRejectsEmptyChain(t *testing.T) {
	_, err := VerifyChain(nil, "example.test", x509.NewCertPool(), time.Now())
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.DecodeError {
		t.Fatalf("got %v, want DecodeError", err)
	}
}

func TestVerifyServerKeyExchangeSignature(t *testing.T) {
	der, key, _, _ := selfSignedLeaf(t, "example.test")
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}

	var clientRandom, serverRandom [32]byte
	clientRandom[0] = 1
	serverRandom[0] = 2
	rawParams := []byte{3, 0, 23, 65, 4, 5, 6, 7}

	signed := append(append(append([]byte{}, clientRandom[:]...), serverRandom[:]...), rawParams...)
	digest := sha256.Sum256(signed)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}

	skx := wire.ServerKeyExchangeECDHE{
		RawParams: rawParams,
		Signed: wire.DigitallySigned{
			Algorithm: wire.SignatureAndHashAlgorithm{Hash: wire.HashSHA256, Sig: wire.SigRSA},
			Signature: sig,
		},
	}

	if err := VerifyServerKeyExchangeSignature(cert, clientRandom, serverRandom, skx); err != nil {
		t.Fatalf("VerifyServerKeyExchangeSignature: %v", err)
	}

	skx.Signed.Signature[0] ^= 0xFF
	if err := VerifyServerKeyExchangeSignature(cert, clientRandom, serverRandom, skx); err == nil {
		t.Fatal("expected failure for tampered signature")
	}
}

func TestVerifyServerKeyExchangeSignatureRejectsUnsupportedAlgorithm(t *testing.T) {
	der, _, _, _ := selfSignedLeaf(t, "example.test")
	cert, _ := x509.ParseCertificate(der)

	skx := wire.ServerKeyExchangeECDHE{
		Signed: wire.DigitallySigned{
			Algorithm: wire.SignatureAndHashAlgorithm{Hash: wire.HashSHA1, Sig: wire.SigRSA},
		},
	}
	var zero [32]byte
	err := VerifyServerKeyExchangeSignature(cert, zero, zero, skx)
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.DecodeError {
		t.Fatalf("got %v, want DecodeError", err)
	}
}
