package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// emitTimeout bounds a single async emit.
const emitTimeout = 5 * time.Second

// EmitDrain is how long the server waits after the gRPC server stops before closing the
// Kafka producer and OTel exporters, so emits started by the last redemptions can finish.
const EmitDrain = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Failures are logged through zap.L().
//
// emitter and event may be nil; EmitAsync returns immediately without starting a goroutine.
// The emit context keeps ctx's values but not its cancellation, so an abandoned request still reports.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *RedemptionEvent) {
	if emitter == nil || event == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	go func() {
		emitCtx, cancel := context.WithTimeout(base, emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			zap.L().Warn("telemetry: async emit failed",
				zap.String("event_type", event.EventType),
				zap.String("token_id", event.TokenID),
				zap.Error(err))
		}
	}()
}
