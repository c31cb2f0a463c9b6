package jobs

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStartWithoutQueueIsNoop(t *testing.T) {
	s := NewScheduler(nil, "tasks", "not a schedule", 10, zerolog.Nop())
	require.NoError(t, s.Start())
	require.NoError(t, s.enqueueTask(map[string]any{"type": "noop"}))
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	s := NewScheduler(client, "tasks", "every now and then", 10, zerolog.Nop())
	require.Error(t, s.Start())
}

func TestStartAcceptsSecondsSchedule(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	s := NewScheduler(client, "tasks", "0 0 * * * *", 10, zerolog.Nop())
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}
