// Package record implements the TLS record layer: 5-byte header framing,
// fragmentation, per-record AEAD, content-type dispatch, and handshake
// message reassembly across record boundaries.
//
// Grounded on original_source/src/record.rs (RecordWriter, RecordReader,
// HandshakeBuffer) and spec.md §4.4.
package record

import (
	"encoding/binary"
	"io"

	"github.com/klutzy/suruga/internal/aead"
	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/wire"
)

// ContentType is the one-byte TLSPlaintext.type field.
type ContentType uint8

const (
	ChangeCipherSpecType ContentType = 20
	AlertType            ContentType = 21
	HandshakeType        ContentType = 22
	ApplicationDataType  ContentType = 23
)

func (t ContentType) valid() bool {
	switch t {
	case ChangeCipherSpecType, AlertType, HandshakeType, ApplicationDataType:
		return true
	default:
		return false
	}
}

const (
	// RecordMaxLen bounds a plaintext fragment.
	RecordMaxLen = 1 << 14
	// EncRecordMaxLen bounds an on-the-wire (possibly encrypted) fragment:
	// plaintext bound plus room for the AEAD tag and then some, matching
	// original_source/src/record.rs's ENC_RECORD_MAX_LEN.
	EncRecordMaxLen = (1 << 14) + 2048
)

var tlsVersion = [2]byte{3, 3}

func seqBytes(seq uint64) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b
}

func associatedData(seq uint64, ct ContentType, fragLen int) []byte {
	seqB := seqBytes(seq)
	ad := make([]byte, 0, 8+1+2+2)
	ad = append(ad, seqB[:]...)
	ad = append(ad, byte(ct), tlsVersion[0], tlsVersion[1])
	ad = append(ad, byte(fragLen>>8), byte(fragLen))
	return ad
}

// Writer sequences outbound records over an underlying io.Writer. Before
// SetCipher is called, records are sent in cleartext; afterward every
// record is sealed under the installed cipher and the sequence counter
// resets to 0, matching spec.md §4.4's "each cipher activates exactly
// once, resetting its sequence counter".
type Writer struct {
	w       io.Writer
	cipher  *aead.Cipher
	seq     uint64
	maxSeq  bool // set once seq has wrapped past its usable range
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (rw *Writer) SetCipher(c *aead.Cipher) {
	rw.cipher = c
	rw.seq = 0
	rw.maxSeq = false
}

func (rw *Writer) writeRecord(ct ContentType, fragment []byte) error {
	if len(fragment) > RecordMaxLen {
		panic("record: plaintext fragment longer than 2^14")
	}

	var onWire []byte
	if rw.cipher == nil {
		onWire = fragment
	} else {
		if rw.maxSeq {
			return alerts.New(alerts.InternalError, "write sequence counter exhausted")
		}
		nonce := seqBytes(rw.seq)
		ad := associatedData(rw.seq, ct, len(fragment))
		onWire = rw.cipher.Encrypt(nonce[:], fragment, ad)
	}

	if len(onWire) > EncRecordMaxLen {
		panic("record: encrypted fragment longer than 2^14+2048")
	}

	header := [5]byte{byte(ct), tlsVersion[0], tlsVersion[1], byte(len(onWire) >> 8), byte(len(onWire))}
	if _, err := rw.w.Write(header[:]); err != nil {
		return alerts.Wrap(alerts.IoFailure, err, "writing record header")
	}
	if _, err := rw.w.Write(onWire); err != nil {
		return alerts.Wrap(alerts.IoFailure, err, "writing record fragment")
	}

	if rw.seq == ^uint64(0) {
		rw.maxSeq = true
	} else {
		rw.seq++
	}
	return nil
}

// WriteData fragments data into RecordMaxLen-sized pieces and writes each
// as its own record of content type ct.
func (rw *Writer) WriteData(ct ContentType, data []byte) error {
	if len(data) == 0 {
		return rw.writeRecord(ct, nil)
	}
	for off := 0; off < len(data); off += RecordMaxLen {
		end := off + RecordMaxLen
		if end > len(data) {
			end = len(data)
		}
		if err := rw.writeRecord(ct, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (rw *Writer) WriteHandshake(msgType wire.HandshakeType, body []byte) error {
	return rw.WriteData(HandshakeType, wire.MarshalEnvelope(msgType, body))
}

func (rw *Writer) WriteAlert(a alerts.Alert) error {
	return rw.WriteData(AlertType, a.Marshal())
}

func (rw *Writer) WriteChangeCipherSpec() error {
	return rw.WriteData(ChangeCipherSpecType, []byte{1})
}

func (rw *Writer) WriteApplicationData(data []byte) error {
	if rw.cipher == nil {
		panic("record: WriteApplicationData called before a write cipher was installed")
	}
	return rw.WriteData(ApplicationDataType, data)
}
