// Package producer streams redemption events to Kafka for the analytics worker.
package producer

import "github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry"

// Producer emits redemption events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

var _ Producer = (*KafkaProducer)(nil)
