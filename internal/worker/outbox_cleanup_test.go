package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

func TestOutboxCleanup_DeletesOnlyOldProcessedEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	for _, eventType := range []string{model.EventReservationBooked, model.EventReservationPaid} {
		evt, err := model.NewOutboxEvent(eventType, map[string]string{})
		require.NoError(t, err)
		require.NoError(t, store.Outbox().Create(ctx, evt))
	}
	processed, _, err := store.Outbox().ProcessPending(ctx, 1, 3, func(context.Context, *model.OutboxEvent) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	w := NewOutboxCleanupWorker(store.Outbox(), time.Hour, time.Minute, logger.NewNop())

	rows, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, rows)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rows, err = w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	remaining := store.OutboxEvents()
	require.Len(t, remaining, 1)
	assert.Equal(t, model.OutboxStatusPending, remaining[0].Status)
}
