package calls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_StartsInitiatedWithOneSystemEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newSession("sess-1", "abc123", "+15551234567", now)

	assert.Equal(t, CallStatusInitiated, s.Status)
	assert.Nil(t, s.EndTime)
	assert.Nil(t, s.DurationSeconds)
	require.Len(t, s.ConversationLog, 1)
	assert.Equal(t, SpeakerSystem, s.ConversationLog[0].Speaker)
	assert.Equal(t, "Call initiated successfully", s.ConversationLog[0].Message)
}

func TestComplete_SetsEndTimeAndWholeSecondDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newSession("sess-1", "abc123", "+15551234567", start)

	end := start.Add(42*time.Second + 900*time.Millisecond)
	s.complete(end)

	assert.Equal(t, CallStatusCompleted, s.Status)
	require.NotNil(t, s.EndTime)
	assert.True(t, end.Equal(*s.EndTime))
	require.NotNil(t, s.DurationSeconds)
	assert.Equal(t, 42, *s.DurationSeconds)
	require.Len(t, s.ConversationLog, 2)
	assert.Equal(t, "Call ended", s.ConversationLog[1].Message)
}

func TestComplete_NoOpWhenCompleted(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newSession("sess-1", "abc123", "+1", start)
	s.complete(start.Add(10 * time.Second))
	s.complete(start.Add(time.Hour))

	assert.Equal(t, 10, *s.DurationSeconds)
	assert.Len(t, s.ConversationLog, 2)
}

func TestDurationSeconds_NeverNegative(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0, durationSeconds(now, now.Add(-time.Minute)))
	assert.Equal(t, 0, durationSeconds(now, now.Add(999*time.Millisecond)))
	assert.Equal(t, 1, durationSeconds(now, now.Add(time.Second)))
}
