package repository

import (
	"context"
	"errors"
	"fmt"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// FanoutSignalPublisher delivers each signal to every publisher. One failing
// sink does not stop the others; their errors are joined.
type FanoutSignalPublisher struct {
	pubs  []domrepo.SignalPublisher
	names []string
}

func NewFanoutSignalPublisher() *FanoutSignalPublisher {
	return &FanoutSignalPublisher{}
}

// Add registers a named publisher. Nil publishers are ignored.
func (f *FanoutSignalPublisher) Add(name string, p domrepo.SignalPublisher) *FanoutSignalPublisher {
	if p != nil {
		f.pubs = append(f.pubs, p)
		f.names = append(f.names, name)
	}
	return f
}

func (f *FanoutSignalPublisher) Len() int { return len(f.pubs) }

func (f *FanoutSignalPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	var errs []error
	for i, p := range f.pubs {
		if err := p.PublishSignal(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutSignalPublisher) Close() error {
	var errs []error
	for i, p := range f.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
		}
	}
	return errors.Join(errs...)
}

var _ domrepo.SignalPublisher = (*FanoutSignalPublisher)(nil)
