package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreschagin/aip-monitor/internal/application/port"
	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

// Sink is an exporter with the name used in error messages.
type Sink struct {
	Name     string
	Exporter port.Exporter
}

// Exporter writes every batch to all sinks. A failing sink does not stop
// the others; their errors are joined.
type Exporter struct {
	sinks       []Sink
	initialized int
}

func New(sinks ...Sink) *Exporter {
	return &Exporter{sinks: sinks}
}

// Initialize initializes the sinks in order. When one fails, the sinks
// initialized before it are closed.
func (e *Exporter) Initialize(ctx context.Context, schema []string) error {
	if len(e.sinks) == 0 {
		return fmt.Errorf("no sinks configured")
	}

	for i, s := range e.sinks {
		if err := s.Exporter.Initialize(ctx, schema); err != nil {
			e.initialized = i
			closeErr := e.Close(ctx)
			return errors.Join(fmt.Errorf("%s: %w", s.Name, err), closeErr)
		}
	}

	e.initialized = len(e.sinks)
	return nil
}

func (e *Exporter) Write(ctx context.Context, records []entity.Record) error {
	var errs []error
	for _, s := range e.sinks[:e.initialized] {
		if err := s.Exporter.Write(ctx, records); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes the initialized sinks in reverse order.
func (e *Exporter) Close(ctx context.Context) error {
	var errs []error
	for i := e.initialized - 1; i >= 0; i-- {
		s := e.sinks[i]
		if err := s.Exporter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	e.initialized = 0
	return errors.Join(errs...)
}
