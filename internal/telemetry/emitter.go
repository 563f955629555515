package telemetry

import (
	"context"
	"errors"
)

// EventEmitter emits redemption events (e.g. to Kafka or OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *RedemptionEvent) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *RedemptionEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
