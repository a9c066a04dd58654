// Package backend opens the record store and the optional event broker
// selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"budget/internal/amqp"
	"budget/internal/services"
	"budget/internal/storage"
)

// BackendResult holds what a process needs to serve records.
type BackendResult struct {
	Store storage.Store
	// AMQP is nil when no broker is configured or it could not be reached
	// and was optional.
	AMQP *amqp.Client
}

// RecordService wires the store and, when present, the broker as event
// publisher.
func (r *BackendResult) RecordService(opts ...services.Option) *services.RecordService {
	if r.AMQP != nil {
		opts = append([]services.Option{services.WithPublisher(r.AMQP)}, opts...)
	}
	return services.NewRecordService(r.Store, opts...)
}

// Close releases the broker connection and the store.
func (r *BackendResult) Close() error {
	var errs []error
	if r.AMQP != nil {
		if err := r.AMQP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireAMQP turns a broker connection failure into an error.
	RequireAMQP bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	return slices.Contains(GetBackendTypes(), bt)
}
