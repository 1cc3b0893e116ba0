package record

import (
	"io"

	"github.com/klutzy/suruga/internal/aead"
	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/wire"
)

// MessageKind discriminates the reassembled, content-type-dispatched
// messages ReadMessage produces - the Go equivalent of
// original_source/src/record.rs's `Message` enum.
type MessageKind int

const (
	HandshakeMessage MessageKind = iota
	ChangeCipherSpecMessage
	AlertMessage
	ApplicationDataMessage
)

// Message is a tagged union: exactly the fields matching Kind are valid.
type Message struct {
	Kind      MessageKind
	Handshake wire.Envelope
	Alert     alerts.Alert
	Data      []byte
}

// Reader sequences inbound records from an underlying io.Reader,
// decrypting and dispatching them, and reassembles Handshake content
// across record boundaries via an internal buffer.
type Reader struct {
	r             io.Reader
	cipher        *aead.Cipher
	seq           uint64
	maxSeq        bool
	handshakeBuf  []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) SetCipher(c *aead.Cipher) {
	rr.cipher = c
	rr.seq = 0
	rr.maxSeq = false
}

func (rr *Reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(rr.r, buf); err != nil {
		return alerts.Wrap(alerts.IoFailure, err, "reading from transport")
	}
	return nil
}

func (rr *Reader) readRecord() (ContentType, []byte, error) {
	var header [5]byte
	if err := rr.readFull(header[:]); err != nil {
		return 0, nil, err
	}

	ct := ContentType(header[0])
	if !ct.valid() {
		return 0, nil, alerts.New(alerts.UnexpectedMessage, "unexpected ContentType: %d", header[0])
	}

	fragLen := int(header[3])<<8 | int(header[4])
	if fragLen > EncRecordMaxLen {
		return 0, nil, alerts.New(alerts.RecordOverflow, "TLSCiphertext too long: %d", fragLen)
	}

	onWire := make([]byte, fragLen)
	if err := rr.readFull(onWire); err != nil {
		return 0, nil, err
	}

	if rr.cipher == nil {
		return ct, onWire, nil
	}

	if rr.maxSeq {
		return 0, nil, alerts.New(alerts.InternalError, "read sequence counter exhausted")
	}
	if len(onWire) < aead.MACLen {
		return 0, nil, alerts.New(alerts.BadRecordMac, "encrypted record too short: %d", len(onWire))
	}
	plainLen := len(onWire) - aead.MACLen
	nonce := seqBytes(rr.seq)
	ad := associatedData(rr.seq, ct, plainLen)

	plaintext, err := rr.cipher.Decrypt(nonce[:], onWire, ad)
	if err != nil {
		return 0, nil, err
	}
	if len(plaintext) > RecordMaxLen {
		return 0, nil, alerts.New(alerts.RecordOverflow, "decrypted record too long: %d", len(plaintext))
	}

	if rr.seq == ^uint64(0) {
		rr.maxSeq = true
	} else {
		rr.seq++
	}
	return ct, plaintext, nil
}

// nextBufferedHandshake pops one complete handshake message out of
// handshakeBuf, if one has fully arrived.
func (rr *Reader) nextBufferedHandshake() (wire.Envelope, bool, error) {
	total, ok := wire.ParseEnvelopeHeader(rr.handshakeBuf)
	if !ok || len(rr.handshakeBuf) < total {
		return wire.Envelope{}, false, nil
	}

	msg := rr.handshakeBuf[:total]
	rr.handshakeBuf = append([]byte(nil), rr.handshakeBuf[total:]...)

	env, err := wire.ParseEnvelope(msg)
	if err != nil {
		return wire.Envelope{}, false, err
	}
	return env, true, nil
}

// ReadMessage reads and decrypts records from the transport until a
// complete, dispatchable message is available, exactly mirroring
// original_source/src/record.rs's RecordReader::read_message: a
// ChangeCipherSpec/Alert/Handshake record is validated and, for
// Handshake, accumulated until a full message is present; ApplicationData
// is returned as soon as one record arrives (it's opaque to this layer).
func (rr *Reader) ReadMessage() (Message, error) {
	if env, ok, err := rr.nextBufferedHandshake(); err != nil {
		return Message{}, err
	} else if ok {
		return Message{Kind: HandshakeMessage, Handshake: env}, nil
	}

	for {
		ct, fragment, err := rr.readRecord()
		if err != nil {
			return Message{}, err
		}

		// spec.md §9's Open Question on interleaved content types during
		// partial handshake reassembly is decided against tolerance: while
		// any part of an incomplete handshake message (header or body) is
		// buffered, the only legal next record is another Handshake fragment.
		if len(rr.handshakeBuf) > 0 && ct != HandshakeType {
			return Message{}, alerts.New(alerts.UnexpectedMessage, "non-Handshake record arrived mid-reassembly")
		}

		switch ct {
		case ChangeCipherSpecType:
			if len(fragment) != 1 || fragment[0] != 1 {
				return Message{}, alerts.New(alerts.UnexpectedMessage, "invalid ChangeCipherSpec arrived")
			}
			return Message{Kind: ChangeCipherSpecMessage}, nil

		case AlertType:
			// A fragmented alert (< 2 bytes in one record) is refused
			// outright rather than reassembled, per spec.md §4.4's
			// alert-attack mitigation - this module does not implement
			// multi-record alert reassembly at all.
			if len(fragment) == 0 {
				return Message{}, alerts.New(alerts.UnexpectedMessage, "zero-length Alert record arrived")
			}
			if len(fragment) < 2 {
				return Message{}, alerts.New(alerts.UnexpectedMessage, "awkward Alert record arrived")
			}
			a, err := alerts.Parse(fragment)
			if err != nil {
				return Message{}, err
			}
			return Message{Kind: AlertMessage, Alert: a}, nil

		case HandshakeType:
			if len(fragment) == 0 {
				return Message{}, alerts.New(alerts.UnexpectedMessage, "zero-length Handshake record arrived")
			}
			rr.handshakeBuf = append(rr.handshakeBuf, fragment...)

			env, ok, err := rr.nextBufferedHandshake()
			if err != nil {
				return Message{}, err
			}
			if ok {
				return Message{Kind: HandshakeMessage, Handshake: env}, nil
			}
			// not enough bytes yet for a full message; read another record

		case ApplicationDataType:
			return Message{Kind: ApplicationDataMessage, Data: fragment}, nil
		}
	}
}

func (rr *Reader) ReadHandshake() (wire.Envelope, error) {
	msg, err := rr.ReadMessage()
	if err != nil {
		return wire.Envelope{}, err
	}
	switch msg.Kind {
	case HandshakeMessage:
		return msg.Handshake, nil
	case AlertMessage:
		return wire.Envelope{}, alerts.NewAlertReceived(msg.Alert)
	default:
		return wire.Envelope{}, alerts.New(alerts.UnexpectedMessage, "expected Handshake")
	}
}

func (rr *Reader) ReadChangeCipherSpec() error {
	msg, err := rr.ReadMessage()
	if err != nil {
		return err
	}
	switch msg.Kind {
	case ChangeCipherSpecMessage:
		return nil
	case AlertMessage:
		// WAIT_CCS legally accepts an Alert in place of the
		// ChangeCipherSpec it expects (spec.md §4.5's state table);
		// surface the peer's alert rather than reporting it as an
		// unrelated UnexpectedMessage.
		return alerts.NewAlertReceived(msg.Alert)
	default:
		return alerts.New(alerts.UnexpectedMessage, "expected ChangeCipherSpec")
	}
}

// ReadApplicationData blocks until an ApplicationData record (or a fatal
// condition) arrives. A Handshake message here means the peer is
// attempting renegotiation, which is a Non-goal (spec.md §1): treated as
// UnexpectedMessage rather than silently handled.
func (rr *Reader) ReadApplicationData() ([]byte, error) {
	for {
		msg, err := rr.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch msg.Kind {
		case ApplicationDataMessage:
			return msg.Data, nil
		case AlertMessage:
			return nil, alerts.NewAlertReceived(msg.Alert)
		default:
			return nil, alerts.New(alerts.UnexpectedMessage, "unexpected message during application data phase")
		}
	}
}
