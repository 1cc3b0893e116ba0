// Package suruga is a client-only implementation of TLS 1.2 (RFC 5246)
// restricted to the single TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256
// cipher suite: ECDHE over NIST P-256, ChaCha20-Poly1305 AEAD (the
// draft-agl-tls-chacha20poly1305-04 framing), SHA-256 PRF.
//
// Session is the top-level type: Open drives the handshake over a
// caller-supplied net.Conn, after which Read/Write move encrypted
// application data and Close sends close_notify. Grounded on
// original_source/src/client.rs's TlsClient (construction performs the
// handshake; afterward the type is a plain Read/Write/Close surface) and
// on the teacher paymentlogs-utls's Conn-is-the-façade shape: one type
// owning the transport, a mutex, and all session state.
package suruga

import (
	"crypto/x509"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/klutzy/suruga/internal/alerts"
	"github.com/klutzy/suruga/internal/handshake"
	"github.com/klutzy/suruga/internal/record"
)

// Config configures a single Open call. All fields are optional; the
// zero Config dials with the system root pool, crypto/rand, no SNI
// hostname, and a discard logger - exactly spec.md §6's "no exposed
// configuration" surface plus the ambient logger this module's SPEC_FULL
// adds on top.
type Config struct {
	// ServerName is used both for the TLS-level hostname check against
	// the leaf certificate (no SNI extension is sent: spec.md §3 names
	// exactly two extensions and server_name is not one of them) and, if
	// empty, disables hostname verification entirely (useful only for
	// connecting to test servers with self-signed certificates, in which
	// case Roots must also be supplied).
	ServerName string
	// Roots overrides the system certificate pool. Nil means use the
	// host's default roots.
	Roots *x509.CertPool
	// Rand overrides the RNG consulted for client_random and the ECDHE
	// scalar. Nil means crypto/rand.Reader.
	Rand io.Reader
	// Now overrides the clock certificate verification uses. Nil means
	// time.Now.
	Now func() time.Time
	// Logger receives structured, secret-free diagnostic records ("sent
	// ClientHello", "alert sent", state transitions). Nil means discard.
	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Session is a single, unique-ownership TLS 1.2 connection over a
// net.Conn. It is not safe for concurrent Read and Write from multiple
// goroutines beyond the usual net.Conn convention (one reader, one
// writer), matching spec.md §5's "entirely single-threaded and
// synchronous" scheduling model - there is no internal concurrency, no
// event loop, and Read/Write block the calling goroutine on transport
// I/O exactly like the underlying net.Conn would.
type Session struct {
	conn net.Conn
	rw   *record.Writer
	rr   *record.Reader
	log  *slog.Logger

	mu       sync.Mutex
	closed   bool
	appRecv  []byte // decrypted application bytes buffered but not yet delivered
}

// Open dials nothing itself: transport is already connected (spec.md §1
// scopes connection setup and name resolution out entirely). Open drives
// the full client handshake over transport and, on success, returns a
// Session ready for Read/Write. On any handshake failure, Open attempts
// to send a fatal alert derived from the error kind before returning it,
// per spec.md §4.6/§7's propagation policy; I/O errors and alerts already
// received from the peer send nothing.
func Open(transport net.Conn, cfg Config) (*Session, error) {
	log := cfg.logger()
	s := &Session{
		conn: transport,
		rw:   record.NewWriter(transport),
		rr:   record.NewReader(transport),
		log:  log,
	}

	hcfg := handshake.Config{
		ServerName: cfg.ServerName,
		Roots:      cfg.Roots,
		Rand:       cfg.Rand,
		Now:        cfg.Now,
		Logger:     log,
	}

	result, err := handshake.Run(s.rw, s.rr, hcfg)
	if err != nil {
		s.sendAlertFor(err)
		return nil, err
	}

	log.Info("suruga: session open", "server_name", cfg.ServerName)
	return s, nil
}

// sendAlertFor writes the fatal alert spec.md §7's table maps the error's
// Kind to, swallowing any I/O failure from the send itself: per spec.md
// §4.6, "I/O errors during alert send are swallowed" and the original
// error is what the caller sees regardless.
func (s *Session) sendAlertFor(err error) {
	var kind alerts.Kind = alerts.InternalError
	if ae, ok := err.(*alerts.Error); ok {
		kind = ae.Kind
	}
	desc, ok := alerts.DescriptionFor(kind)
	if !ok {
		return
	}
	a := alerts.Alert{Level: alerts.LevelFatal, Description: desc}
	if werr := s.rw.WriteAlert(a); werr != nil {
		s.log.Debug("suruga: failed to send alert", "error", werr)
		return
	}
	s.log.Debug("suruga: sent alert", "description", desc)
}

// Read returns up to len(buf) bytes of decrypted application data,
// blocking until at least one byte is available, the peer sends
// close_notify (returns 0, io.EOF), or an error occurs. A closed or
// previously-failed Session always returns an error: spec.md §4.6's "the
// session is single-shot" rule.
func (s *Session) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, alerts.New(alerts.InternalError, "session is closed")
	}

	for len(s.appRecv) == 0 {
		data, err := s.readApplicationData()
		if err != nil {
			if isCloseNotify(err) {
				s.closed = true
				return 0, io.EOF
			}
			s.fail(err)
			return 0, err
		}
		s.appRecv = data
	}

	n := copy(buf, s.appRecv)
	s.appRecv = s.appRecv[n:]
	return n, nil
}

func (s *Session) readApplicationData() ([]byte, error) {
	return s.rr.ReadApplicationData()
}

// isCloseNotify reports whether err is a received close_notify alert -
// the one alert description spec.md §6 maps to a clean (0, io.EOF) read
// rather than an error. Every other alert is fatal (spec.md §3: "the
// core treats every received alert as fatal") and must surface to the
// caller as an error, not as end-of-stream.
func isCloseNotify(err error) bool {
	ae, ok := err.(*alerts.Error)
	return ok && ae.Kind == alerts.AlertReceived && ae.AlertDesc == alerts.DescCloseNotify
}

// Write encrypts and sends all of buf as one or more ApplicationData
// records (spec.md §4.4 fragments at 2^14 bytes internally); either all
// of buf is sent or an error is returned, never a partial count.
func (s *Session) Write(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, alerts.New(alerts.InternalError, "session is closed")
	}

	if err := s.rw.WriteApplicationData(buf); err != nil {
		s.fail(err)
		return 0, err
	}
	return len(buf), nil
}

// fail marks the session closed and, for protocol errors (anything but
// an I/O failure, which means the peer is probably already gone),
// attempts to notify the peer with a fatal alert before surfacing.
func (s *Session) fail(err error) {
	s.closed = true
	if ae, ok := err.(*alerts.Error); ok && ae.Kind == alerts.IoFailure {
		return
	}
	s.sendAlertFor(err)
}

// Close sends a fatal close_notify alert. Transport shutdown remains the
// caller's responsibility (spec.md §6): Close does not call
// s.conn.Close(). Once closed, Read and Write both fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	a := alerts.Alert{Level: alerts.LevelFatal, Description: alerts.DescCloseNotify}
	if err := s.rw.WriteAlert(a); err != nil {
		return err
	}
	s.log.Debug("suruga: sent close_notify")
	return nil
}
