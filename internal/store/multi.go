package store

import (
	"context"

	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/types"
)

// Multi writes every measurement to several backends.
//
// A failure of one backend does not keep the others from receiving the
// measurement or from flushing; the errors are joined.
type Multi struct {
	stores []Store
}

// NewMulti combines stores.
func NewMulti(stores ...Store) *Multi {
	return &Multi{stores: stores}
}

// AddMeasurement adds m to every backend.
func (m *Multi) AddMeasurement(ctx context.Context, meas types.Measurement) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.AddMeasurement(ctx, meas); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every backend.
func (m *Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending returns the largest buffer of all backends that report one.
func (m *Multi) Pending() int {
	max := 0
	for _, s := range m.stores {
		if p, ok := s.(Pending); ok && p.Pending() > max {
			max = p.Pending()
		}
	}
	return max
}

// Close closes every backend.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.stores {
		if err := Close(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of backends.
func (m *Multi) Len() int {
	return len(m.stores)
}
