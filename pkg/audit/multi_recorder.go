package audit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// MultiRecorder records to multiple sinks simultaneously. Recording is
// synchronous: Record returns only after every sink has been attempted,
// so a completed decision is durable everywhere it is going to be.
type MultiRecorder struct {
	recorders []Recorder
	onFailure func(error)

	mu       sync.Mutex
	failures []error
}

// NewMultiRecorder creates a new multi-recorder that writes to
// multiple destinations
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{
		recorders: recorders,
	}
}

// WithFailureHandler returns a copy of the recorder that reports each
// sink failure to fn. The handler runs on the recording goroutine and
// must not block.
func (m *MultiRecorder) WithFailureHandler(fn func(error)) *MultiRecorder {
	return &MultiRecorder{
		recorders: m.recorders,
		onFailure: fn,
	}
}

// Record writes the record to every sink. Each sink is attempted even
// when another fails; the first error is returned.
func (m *MultiRecorder) Record(ctx context.Context, rec *DecisionRecord) error {
	if len(m.recorders) == 0 {
		return nil
	}

	g := new(errgroup.Group)
	for _, recorder := range m.recorders {
		recorder := recorder
		g.Go(func() error {
			if err := recorder.Record(ctx, rec); err != nil {
				m.noteFailure(err)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func (m *MultiRecorder) noteFailure(err error) {
	if m.onFailure != nil {
		m.onFailure(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

// Failures drains and returns the sink failures seen so far
func (m *MultiRecorder) Failures() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	failures := m.failures
	m.failures = nil
	return failures
}

// Close closes all sinks
func (m *MultiRecorder) Close() error {
	var firstErr error
	for _, recorder := range m.recorders {
		if err := recorder.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close recorder: %w", err)
			}
		}
	}

	return firstErr
}
