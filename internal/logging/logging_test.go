package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact_ReplacesRegisteredSecret(t *testing.T) {
	secretMarkers = nil
	RegisterSecret("super-secret-token")

	out := Redact("calling upstream with token super-secret-token attached")
	assert.NotContains(t, out, "super-secret-token")
	assert.Contains(t, out, "[REDACTED]")
}

func TestRegisterSecret_IgnoresEmptyValue(t *testing.T) {
	secretMarkers = nil
	RegisterSecret("")
	assert.Empty(t, secretMarkers)
}

func TestRedact_MasksAuthorizationHeaderLine(t *testing.T) {
	secretMarkers = nil
	out := Redact("Authorization: Bearer abc123\nContent-Type: application/json")
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, "Content-Type: application/json")
}

func TestRedact_NoSecretsIsNoop(t *testing.T) {
	secretMarkers = nil
	in := "plain log line with nothing sensitive"
	assert.Equal(t, in, Redact(in))
}

func TestNew_DefaultsToInfoOnInvalidLevel(t *testing.T) {
	New("not-a-level")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestNew_HonorsValidLevel(t *testing.T) {
	New("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestRedactingWriter_ScrubsUnderlyingWrites(t *testing.T) {
	var buf bytes.Buffer
	w := redactingWriter{out: &buf}

	secretMarkers = nil
	RegisterSecret("super-secret-token")

	n, err := w.Write([]byte("authenticated with super-secret-token"))
	require.NoError(t, err)
	assert.Equal(t, len("authenticated with super-secret-token"), n)
	assert.NotContains(t, buf.String(), "super-secret-token")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestLogger_EmittedLinesAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	secretMarkers = nil
	RegisterSecret("wallet-secret-xyz")

	console := zerolog.ConsoleWriter{Out: redactingWriter{out: &buf}, NoColor: true}
	logger := zerolog.New(console).With().Timestamp().Logger()

	logger.Info().Str("detail", "wallet-secret-xyz").Msg("dispatching")

	assert.NotContains(t, buf.String(), "wallet-secret-xyz")
	assert.Contains(t, buf.String(), "[REDACTED]")
}
