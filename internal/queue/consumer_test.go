package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerHandleAppendsLines(t *testing.T) {
	c := NewConsumer("amqp://unused", zerolog.Nop())
	c.LogPath = filepath.Join(t.TempDir(), "logs", "notifications.log")

	session, res := uint64(4), uint64(9)
	first := event("e1", ReservationConfirmed)
	first.SessionID, first.ReservationID, first.Date = &session, &res, "2024-06-01"
	second := event("e2", HoldExpired)

	for _, ev := range []NotificationEvent{first, second} {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, c.Handle(body))
	}

	data, err := os.ReadFile(c.LogPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[2024-06-01T09:00:00Z] reservation.confirmed | event_id=e1 | user_id=7 | facility_id=1 | session_id=4 | reservation_id=9 | date=2024-06-01 | title="t"`, lines[0])
	assert.Contains(t, lines[1], "waitlist.hold_expired | event_id=e2")
	assert.Contains(t, lines[1], "session_id=- | reservation_id=- | date=-")
}

func TestConsumerHandleRejectsBadMessages(t *testing.T) {
	c := NewConsumer("amqp://unused", zerolog.Nop())
	c.LogPath = filepath.Join(t.TempDir(), "notifications.log")

	assert.Error(t, c.Handle([]byte("not json")))
	assert.Error(t, c.Handle([]byte(`{"event_id":"x"}`)))
	_, err := os.Stat(c.LogPath)
	assert.True(t, os.IsNotExist(err))
}
