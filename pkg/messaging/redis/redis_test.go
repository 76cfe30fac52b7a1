package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func newTestBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	broker := NewRedisBroker(client, logger.NewNop(), metrics.NewNop())
	t.Cleanup(func() { broker.Close() })
	return broker
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	broker := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := messaging.Channel("reservation.booked")
	msgs, err := broker.Subscribe(ctx, channel)
	require.NoError(t, err)

	sent := messaging.Message{
		ID:         uuid.New(),
		Type:       "reservation.booked",
		Payload:    json.RawMessage(`{"reservation_id":"abc"}`),
		OccurredAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, broker.Publish(ctx, channel, sent))

	select {
	case raw := <-msgs:
		var got messaging.Message
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.Type, got.Type)
		assert.JSONEq(t, `{"reservation_id":"abc"}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-msgs
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsume_SkipsUndecodableMessages(t *testing.T) {
	broker := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := messaging.Channel("doctor.created")
	received := make(chan messaging.Message, 1)
	done := make(chan error, 1)

	// Subscribe before publishing so nothing is lost.
	msgs, err := broker.Subscribe(ctx, channel)
	require.NoError(t, err)
	stub := &stubBroker{msgs: msgs}

	go func() {
		done <- messaging.Consume(ctx, stub, channel, func(_ context.Context, msg messaging.Message) error {
			received <- msg
			return nil
		}, logger.NewNop())
	}()

	require.NoError(t, broker.client.Publish(ctx, channel, "not json").Err())
	require.NoError(t, broker.Publish(ctx, channel, messaging.Message{ID: uuid.New(), Type: "doctor.created"}))

	select {
	case msg := <-received:
		assert.Equal(t, "doctor.created", msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("message not consumed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

type stubBroker struct {
	messaging.Broker
	msgs <-chan []byte
}

func (s *stubBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return s.msgs, nil
}
