package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), &telemetry.RedemptionEvent{TokenID: "t"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestEmit_RealProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.RedemptionEvent{EventType: telemetry.EventTokenIssued}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	em := newEventEmitterWithLogger(cap)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &telemetry.RedemptionEvent{
		EventID:    "ev-1",
		EventType:  telemetry.EventRedemptionRejected,
		TokenID:    "tok-1",
		Channel:    "POS",
		DeviceID:   "pos-7",
		Stage:      "DEVICE_CHECKED",
		Reason:     "DeviceNotAuthorized",
		Offline:    true,
		Source:     "redemption",
		OccurredAt: at,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if got := rec.Body().AsString(); got != telemetry.EventRedemptionRejected {
		t.Errorf("body = %q", got)
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN for rejections", rec.Severity())
	}

	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	for k, want := range map[string]string{
		"event_id": "ev-1", "token_id": "tok-1", "channel": "POS", "device_id": "pos-7",
		"stage": "DEVICE_CHECKED", "reason": "DeviceNotAuthorized", "source": "redemption",
	} {
		if got := attrs[k].AsString(); got != want {
			t.Errorf("attr %s = %q, want %q", k, got, want)
		}
	}
	if !attrs["offline"].AsBool() {
		t.Error("offline attribute should be true")
	}
	if _, ok := attrs["payee_id"]; ok {
		t.Error("empty fields must not become attributes")
	}
}

func TestEmit_DefaultsTimestampAndSeverity(t *testing.T) {
	cap := &recordCapture{}
	em := newEventEmitterWithLogger(cap)
	before := time.Now().Add(-time.Second)
	if err := em.Emit(context.Background(), &telemetry.RedemptionEvent{EventType: telemetry.EventTokenRedeemed}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.rec.Timestamp().Before(before) {
		t.Errorf("timestamp = %v, want now", cap.rec.Timestamp())
	}
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", cap.rec.Severity())
	}
}
