// Package logging builds the process-wide structured logger
// (SPEC_FULL.md §A2) and a redaction helper that strips secrets before
// any log line is emitted, so spec.md §7's "logs must never include the
// wallet private key, the claw.credit API token, or the Authorization
// header" invariant is enforced structurally rather than by convention
// at each call site.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// secretMarkers are registered secret strings. Every occurrence of one
// in a log line is replaced in full rather than partially masked —
// a partial mask risks leaking enough of a key to narrow brute force.
var secretMarkers []string

// RegisterSecret marks value as sensitive; every occurrence of value in
// a log line is replaced with "[REDACTED]", and the surrounding text is
// kept. Called once at startup with the wallet private key and the
// claw.credit API token.
func RegisterSecret(value string) {
	if value == "" {
		return
	}
	secretMarkers = append(secretMarkers, value)
}

// Redact returns s with every registered secret (and any bearer/basic
// Authorization-looking value) replaced by "[REDACTED]".
func Redact(s string) string {
	out := s
	for _, secret := range secretMarkers {
		if secret == "" {
			continue
		}
		out = strings.ReplaceAll(out, secret, "[REDACTED]")
	}
	if idx := strings.Index(strings.ToLower(out), "authorization:"); idx >= 0 {
		end := strings.IndexByte(out[idx:], '\n')
		if end < 0 {
			out = out[:idx] + "authorization: [REDACTED]"
		} else {
			out = out[:idx] + "authorization: [REDACTED]" + out[idx+end:]
		}
	}
	return out
}

// redactingWriter wraps an io.Writer and passes every write through
// Redact first, so no call site can forget to scrub a log line — the
// invariant holds at the sink, not at each Msg() call.
type redactingWriter struct {
	out io.Writer
}

func (w redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// New builds the process-wide zerolog.Logger, writing to stderr in the
// teacher's console-friendly style for local/dev use. Every line is
// routed through redactingWriter before it reaches the terminal.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	console := zerolog.ConsoleWriter{Out: redactingWriter{out: os.Stderr}, TimeFormat: "15:04:05"}
	return zerolog.New(console).With().Timestamp().Logger()
}
