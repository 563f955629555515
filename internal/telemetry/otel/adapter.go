package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry"
)

const instrumentationName = "namqr.redemption"

// recordEmitter is the part of otellog.Logger the emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends redemption events as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return newEventEmitterWithLogger(provider.Logger(instrumentationName))
}

func newEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.RedemptionEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to a log record: the event type is the body, the rest are attributes.
// Rejections are logged at WARN so collectors can alert on replay attempts.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.RedemptionEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(event.EventType))
	rec.SetSeverity(otellog.SeverityInfo)
	if event.EventType == telemetry.EventRedemptionRejected {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	rec.AddAttributes(otellog.String("event_type", event.EventType))
	for _, kv := range []struct{ key, val string }{
		{"event_id", event.EventID},
		{"token_id", event.TokenID},
		{"payee_id", event.PayeeID},
		{"channel", event.Channel},
		{"device_id", event.DeviceID},
		{"stage", event.Stage},
		{"reason", event.Reason},
		{"amount", event.Amount},
		{"currency", event.Currency},
		{"source", event.Source},
	} {
		if kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.val))
		}
	}
	if event.Offline {
		rec.AddAttributes(otellog.Bool("offline", true))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
