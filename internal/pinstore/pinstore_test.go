package pinstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet_RoundTrip(t *testing.T) {
	s := New(time.Minute, 16)
	s.Set("session-1", "auto", "anthropic/claude-sonnet-4-5")

	model, ok := s.Get("session-1", "auto")
	assert.True(t, ok)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", model)
}

func TestGet_MissingSessionReturnsFalse(t *testing.T) {
	s := New(time.Minute, 16)
	_, ok := s.Get("absent", "auto")
	assert.False(t, ok)
}

func TestGet_ScopedByTierProfile(t *testing.T) {
	s := New(time.Minute, 16)
	s.Set("session-1", "auto", "model-a")

	_, ok := s.Get("session-1", "premium")
	assert.False(t, ok, "a pin written under one tier profile must not leak into another")
}

func TestGet_EmptySessionIDNeverPins(t *testing.T) {
	s := New(time.Minute, 16)
	s.Set("", "auto", "model-a")
	_, ok := s.Get("", "auto")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	s := New(20*time.Millisecond, 16)
	s.Set("session-1", "auto", "model-a")

	_, ok := s.Get("session-1", "auto")
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = s.Get("session-1", "auto")
	assert.False(t, ok)
}

func TestLen(t *testing.T) {
	s := New(time.Minute, 16)
	assert.Equal(t, 0, s.Len())
	s.Set("session-1", "auto", "model-a")
	s.Set("session-2", "auto", "model-b")
	assert.Equal(t, 2, s.Len())
}
