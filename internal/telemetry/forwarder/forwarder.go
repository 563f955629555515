// Package forwarder moves redemption events from Kafka to Loki for the analytics worker.
package forwarder

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const pushTimeout = 10 * time.Second

// Reader is the part of *kafka.Reader the forwarder uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Pusher delivers one raw event. *loki.Client satisfies it.
type Pusher interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

// Forwarder reads events and pushes them. Offsets are committed after the push is attempted,
// so a crash replays at most the in-flight message.
type Forwarder struct {
	reader Reader
	pusher Pusher
	logger *zap.Logger
}

// New returns a forwarder. A nil logger discards logs.
func New(reader Reader, pusher Pusher, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{reader: reader, pusher: pusher, logger: logger}
}

// Run forwards until ctx is cancelled. It returns nil on cancellation.
// Push failures are logged and the message is still committed; analytics are best-effort.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		msg, err := f.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			f.logger.Warn("kafka fetch failed", zap.Error(err))
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := f.pusher.PushEventJSON(pushCtx, msg.Value); err != nil {
			f.logger.Warn("loki push failed",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		cancel()

		if err := f.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			f.logger.Warn("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}
