package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopSink(t *testing.T) {
	var s NopSink
	assert.NoError(t, s.Publish(context.Background(), Event{Type: TypeSyncUpdated}))
	assert.NoError(t, s.Close())
}

func TestNewKafkaSink(t *testing.T) {
	t.Run("requires brokers", func(t *testing.T) {
		_, err := NewKafkaSink(KafkaSinkConfig{Topic: "ipranges.sync"}, nil)
		assert.ErrorContains(t, err, "broker")
	})

	t.Run("requires topic", func(t *testing.T) {
		_, err := NewKafkaSink(KafkaSinkConfig{Brokers: []string{"localhost:9092"}}, nil)
		assert.ErrorContains(t, err, "topic")
	})

	t.Run("applies timeout defaults", func(t *testing.T) {
		s, err := NewKafkaSink(KafkaSinkConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "ipranges.sync",
		}, nil)
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, time.Second, s.writer.BatchTimeout)
		assert.Equal(t, 10*time.Second, s.writer.WriteTimeout)
	})
}

func TestKafkaSinkClose(t *testing.T) {
	s, err := NewKafkaSink(KafkaSinkConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "ipranges.sync",
	}, nil)
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "closing twice is safe")

	err = s.Publish(context.Background(), Event{Type: TypeSyncUpdated, At: time.Now()})
	assert.ErrorContains(t, err, "closed")
}

func TestKafkaSinkPublishFailureIsCounted(t *testing.T) {
	// No broker is listening on this address, so the write must fail fast
	// and be recorded in the failure counter.
	s, err := NewKafkaSink(KafkaSinkConfig{
		Brokers:      []string{"127.0.0.1:1"},
		Topic:        "ipranges.sync",
		WriteTimeout: 100 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = s.Publish(ctx, Event{Type: TypeSyncFailed, At: time.Now(), Reason: "fetch failed"})
	require.Error(t, err)

	written, failed := s.Stats()
	assert.Equal(t, int64(0), written)
	assert.Equal(t, int64(1), failed)
}
