// Command suruga-client dials a TLS 1.2 server speaking
// TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256, completes the handshake,
// issues one HTTP/1.1 request line, and prints the decrypted response.
// The Go-native counterpart to original_source/examples/google.rs.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/klutzy/suruga"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		timeout time.Duration
		verbose bool
		path    string
	)

	cmd := &cobra.Command{
		Use:   "suruga-client host:port",
		Short: "Fetch a URL path over a hand-rolled TLS 1.2 client",
		Long: `suruga-client dials host:port, performs the full TLS 1.2 ECDHE/
ChaCha20-Poly1305 handshake this module implements, sends a single
HTTP/1.1 GET request, and prints the decrypted response to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(args[0], path, timeout, verbose)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "dial and handshake timeout")
	cmd.Flags().StringVarP(&path, "path", "p", "/", "HTTP request path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "emit debug-level handshake logging to stderr")

	return cmd
}

func fetch(hostport, path string, timeout time.Duration, verbose bool) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return fmt.Errorf("parsing address %q: %w", hostport, err)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.Dial("tcp", hostport)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", hostport, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))

	cfg := suruga.Config{
		ServerName: host,
		Logger:     logger,
	}

	sess, err := suruga.Open(conn, cfg)
	if err != nil {
		return fmt.Errorf("TLS handshake with %s failed: %w", hostport, err)
	}
	defer sess.Close()

	request := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", path, host)
	if _, err := sess.Write([]byte(request)); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	_ = conn.SetDeadline(time.Time{})
	if _, err := io.Copy(os.Stdout, sess); err != nil && err != io.EOF {
		return fmt.Errorf("reading response: %w", err)
	}
	return nil
}
