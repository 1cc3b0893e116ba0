package alerts

// AlertLevel is the one-byte severity field of an Alert record. This
// client treats every received alert as fatal regardless of level
// (original_source/src/alert.rs's own comment: "we treat every alert as
// fatal"), and only ever sends level=fatal itself.
type AlertLevel uint8

const (
	LevelWarning AlertLevel = 1
	LevelFatal   AlertLevel = 2
)

// AlertDescription enumerates RFC 5246 Appendix A.3's alert descriptions.
// Only the subset this module can plausibly send or must recognize on
// receipt is named; an unrecognized value on the wire is UnexpectedMessage.
type AlertDescription uint8

const (
	DescCloseNotify          AlertDescription = 0
	DescUnexpectedMessage    AlertDescription = 10
	DescBadRecordMac         AlertDescription = 20
	DescRecordOverflow       AlertDescription = 22
	DescHandshakeFailure     AlertDescription = 40
	DescBadCertificate       AlertDescription = 42
	DescCertificateExpired   AlertDescription = 45
	DescCertificateUnknown   AlertDescription = 46
	DescIllegalParameter     AlertDescription = 47
	DescUnknownCA            AlertDescription = 48
	DescDecodeError          AlertDescription = 50
	DescDecryptError         AlertDescription = 51
	DescProtocolVersion      AlertDescription = 70
	DescInsufficientSecurity AlertDescription = 71
	DescInternalError        AlertDescription = 80
)

// Alert is the 2-byte `{level, description}` alert record body.
type Alert struct {
	Level       AlertLevel
	Description AlertDescription
}

func (l AlertLevel) valid() bool {
	switch l {
	case LevelWarning, LevelFatal:
		return true
	default:
		return false
	}
}

func (d AlertDescription) valid() bool {
	switch d {
	case DescCloseNotify, DescUnexpectedMessage, DescBadRecordMac, DescRecordOverflow,
		DescHandshakeFailure, DescBadCertificate, DescCertificateExpired, DescCertificateUnknown,
		DescIllegalParameter, DescUnknownCA, DescDecodeError, DescDecryptError,
		DescProtocolVersion, DescInsufficientSecurity, DescInternalError:
		return true
	default:
		return false
	}
}

// DescriptionFor maps an error Kind to the alert description sent before
// the session surfaces that error, per spec.md §7's table. IoFailure and
// AlertReceived map to ok=false: a transport error likely means nobody's
// listening, and a received alert is itself the peer's signal, so no
// alert is sent for either (this differs from the Rust original, which
// mapped IoFailure to internal_error and AlertReceived to close_notify -
// spec.md explicitly redesigns both to send nothing).
func DescriptionFor(kind Kind) (AlertDescription, bool) {
	switch kind {
	case UnexpectedMessage:
		return DescUnexpectedMessage, true
	case BadRecordMac:
		return DescBadRecordMac, true
	case RecordOverflow:
		return DescRecordOverflow, true
	case IllegalParameter:
		return DescIllegalParameter, true
	case DecodeError:
		return DescDecodeError, true
	case DecryptError:
		return DescDecryptError, true
	case InternalError:
		return DescInternalError, true
	case IoFailure, AlertReceived:
		return 0, false
	default:
		return DescInternalError, true
	}
}

// Marshal encodes the 2-byte alert body.
func (a Alert) Marshal() []byte {
	return []byte{byte(a.Level), byte(a.Description)}
}

// Parse decodes a 2-byte (or longer - trailing bytes are ignored, callers
// enforce the exact length they expect) alert body. The caller (record
// layer) is responsible for rejecting single-byte/empty Alert records
// before calling this, per spec.md §4.4's alert-attack mitigation. An
// unrecognized level or description byte is itself UnexpectedMessage,
// mirroring original_source/src/tls_item.rs's tls_enum! (unknown
// discriminants fail to decode rather than passing through).
func Parse(body []byte) (Alert, error) {
	if len(body) < 2 {
		return Alert{}, New(UnexpectedMessage, "alert body too short: %d", len(body))
	}
	level := AlertLevel(body[0])
	if !level.valid() {
		return Alert{}, New(UnexpectedMessage, "unknown alert level: %d", body[0])
	}
	desc := AlertDescription(body[1])
	if !desc.valid() {
		return Alert{}, New(UnexpectedMessage, "unknown alert description: %d", body[1])
	}
	return Alert{Level: level, Description: desc}, nil
}
