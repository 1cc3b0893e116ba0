package record

import (
	"bytes"
	"testing"

	"github.com/klutzy/suruga/internal/aead"
	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/wire"
)

func testCipher(t *testing.T, b byte) *aead.Cipher {
	t.Helper()
	key := make([]byte, aead.KeySize)
	for i := range key {
		key[i] = b
	}
	return aead.New(key)
}

func TestWriteReadApplicationDataPlaintext(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteData(ApplicationDataType, []byte("hello")); err != nil {
		t.Fatalf("WriteData: %v", err)
	}

	r := NewReader(&buf)
	data, err := r.ReadApplicationData()
	if err != nil {
		t.Fatalf("ReadApplicationData: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
}

func TestWriteReadApplicationDataCiphered(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetCipher(testCipher(t, 1))
	r := NewReader(&buf)
	r.SetCipher(testCipher(t, 1))

	for i := 0; i < 3; i++ {
		payload := bytes.Repeat([]byte{byte(i + 1)}, 10)
		if err := w.WriteApplicationData(payload); err != nil {
			t.Fatalf("WriteApplicationData %d: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		data, err := r.ReadApplicationData()
		if err != nil {
			t.Fatalf("ReadApplicationData %d: %v", i, err)
		}
		want := bytes.Repeat([]byte{byte(i + 1)}, 10)
		if !bytes.Equal(data, want) {
			t.Fatalf("record %d: got %x want %x", i, data, want)
		}
	}
}

func TestWriteApplicationDataPanicsWithoutCipher(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without a cipher installed")
		}
	}()
	var buf bytes.Buffer
	NewWriter(&buf).WriteApplicationData([]byte("x"))
}

func TestCipherInstallResetsSequence(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteData(ApplicationDataType, []byte("a")); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := w.WriteData(ApplicationDataType, []byte("b")); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if w.seq != 2 {
		t.Fatalf("seq = %d, want 2", w.seq)
	}
	w.SetCipher(testCipher(t, 9))
	if w.seq != 0 {
		t.Fatalf("seq after SetCipher = %d, want 0", w.seq)
	}
}

func TestReadRejectsOverlongFragment(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{byte(ApplicationDataType), 3, 3, 0xFF, 0xFF}) // fragLen 65535 > EncRecordMaxLen(18432)
	r := NewReader(&buf)
	_, err := r.ReadApplicationData()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.RecordOverflow {
		t.Fatalf("got %v, want RecordOverflow", err)
	}
}

func TestReadRejectsUnknownContentType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{99, 3, 3, 0, 0})
	r := NewReader(&buf)
	_, err := r.ReadApplicationData()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.UnexpectedMessage {
		t.Fatalf("got %v, want UnexpectedMessage", err)
	}
}

func TestReadRejectsZeroLengthHandshakeRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.writeRecord(HandshakeType, nil); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	r := NewReader(&buf)
	_, err := r.ReadHandshake()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.UnexpectedMessage {
		t.Fatalf("got %v, want UnexpectedMessage", err)
	}
}

func TestReadRejectsShortAlert(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.writeRecord(AlertType, []byte{1}); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	r := NewReader(&buf)
	_, err := r.ReadApplicationData()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.UnexpectedMessage {
		t.Fatalf("got %v, want UnexpectedMessage", err)
	}
}

func TestReadRejectsEmptyAlert(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.writeRecord(AlertType, nil); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	r := NewReader(&buf)
	_, err := r.ReadApplicationData()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.UnexpectedMessage {
		t.Fatalf("got %v, want UnexpectedMessage", err)
	}
}

func TestReadRejectsMalformedChangeCipherSpec(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.writeRecord(ChangeCipherSpecType, []byte{9}); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	r := NewReader(&buf)
	err := r.ReadChangeCipherSpec()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.UnexpectedMessage {
		t.Fatalf("got %v, want UnexpectedMessage", err)
	}
}

func TestAlertRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	a := alerts.Alert{Level: alerts.LevelFatal, Description: alerts.DescHandshakeFailure}
	if err := w.WriteAlert(a); err != nil {
		t.Fatalf("WriteAlert: %v", err)
	}
	r := NewReader(&buf)
	_, err := r.ReadApplicationData()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.AlertReceived {
		t.Fatalf("got %v, want AlertReceived", err)
	}
}

func TestHandshakeReassemblyAcrossRecords(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, RecordMaxLen+100)
	envelope := wire.MarshalEnvelope(wire.ClientHelloType, body)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	// split the envelope across record boundaries deliberately misaligned
	// with its own internal header/body split
	const chunk = 4096
	for off := 0; off < len(envelope); off += chunk {
		end := off + chunk
		if end > len(envelope) {
			end = len(envelope)
		}
		if err := w.writeRecord(HandshakeType, envelope[off:end]); err != nil {
			t.Fatalf("writeRecord: %v", err)
		}
	}

	r := NewReader(&buf)
	env, err := r.ReadHandshake()
	if err != nil {
		t.Fatalf("ReadHandshake: %v", err)
	}
	if env.Type != wire.ClientHelloType {
		t.Fatalf("got type %v", env.Type)
	}
	if !bytes.Equal(env.Body, body) {
		t.Fatalf("reassembled body mismatch: got %d bytes, want %d", len(env.Body), len(body))
	}
}

func TestMultipleHandshakeMessagesInOneRecord(t *testing.T) {
	msg1 := wire.MarshalEnvelope(wire.ServerHelloType, []byte{1, 2, 3})
	msg2 := wire.MarshalEnvelope(wire.ServerHelloDone, nil)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.writeRecord(HandshakeType, append(append([]byte{}, msg1...), msg2...)); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	r := NewReader(&buf)
	env1, err := r.ReadHandshake()
	if err != nil {
		t.Fatalf("ReadHandshake 1: %v", err)
	}
	if env1.Type != wire.ServerHelloType || !bytes.Equal(env1.Body, []byte{1, 2, 3}) {
		t.Fatalf("unexpected first message: %+v", env1)
	}

	env2, err := r.ReadHandshake()
	if err != nil {
		t.Fatalf("ReadHandshake 2: %v", err)
	}
	if env2.Type != wire.ServerHelloDone || len(env2.Body) != 0 {
		t.Fatalf("unexpected second message: %+v", env2)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetCipher(testCipher(t, 5))
	if err := w.WriteApplicationData([]byte("secret")); err != nil {
		t.Fatalf("WriteApplicationData: %v", err)
	}

	onWire := buf.Bytes()
	onWire[len(onWire)-1] ^= 0xFF // flip a tag byte

	r := NewReader(bytes.NewReader(onWire))
	r.SetCipher(testCipher(t, 5))
	_, err := r.ReadApplicationData()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.BadRecordMac {
		t.Fatalf("got %v, want BadRecordMac", err)
	}
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{byte(ApplicationDataType), 3, 3, 0, 3})
	buf.Write([]byte{1, 2, 3})
	r := NewReader(&buf)
	r.SetCipher(testCipher(t, 2))
	_, err := r.ReadApplicationData()
	aerr, ok := err.(*alerts.Error)
	if !ok || aerr.Kind != alerts.BadRecordMac {
		t.Fatalf("got %v, want BadRecordMac", err)
	}
}

func TestSequenceCounterIncrementsIndependently(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetCipher(testCipher(t, 7))
	r := NewReader(&buf)
	r.SetCipher(testCipher(t, 7))

	for i := 0; i < 4; i++ {
		if err := w.WriteApplicationData([]byte{byte(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if w.seq != 4 {
		t.Fatalf("writer seq = %d, want 4", w.seq)
	}
	for i := 0; i < 4; i++ {
		if _, err := r.ReadApplicationData(); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if r.seq != 4 {
		t.Fatalf("reader seq = %d, want 4", r.seq)
	}
}
