package messaging

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Handler processes one decoded message.
type Handler func(ctx context.Context, msg Message) error

// Consume subscribes to channel and feeds every message to handler until ctx
// is done. Undecodable messages and handler errors are logged and skipped.
func Consume(ctx context.Context, broker Broker, channel string, handler Handler, log *logger.Logger) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for raw := range msgChan {
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Error(err, "Dropping undecodable message", "channel", channel)
			continue
		}
		if err := handler(ctx, msg); err != nil {
			log.Error(err, "Failed to handle message", "channel", channel, "event_id", msg.ID.String())
		}
	}

	return ctx.Err()
}
