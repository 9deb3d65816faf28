package core

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrDrained is returned when an accumulator is used after Drain.
var ErrDrained = errors.New("accumulator already drained")

// Accumulator is an append-only collection of classified rows for one
// category. Appends may come from any number of goroutines; the contents are
// read once, through Drain, after all producers have finished.
type Accumulator struct {
	category Category

	mu      sync.Mutex
	rows    []ClassifiedRow
	drained bool
}

// NewAccumulator creates an empty accumulator for a category.
func NewAccumulator(category Category) *Accumulator {
	return &Accumulator{category: category}
}

// Category returns the category the accumulator collects.
func (a *Accumulator) Category() Category {
	return a.category
}

// Append adds rows in one step, preserving their order.
func (a *Accumulator) Append(rows ...ClassifiedRow) error {
	if len(rows) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.drained {
		return errors.Wrapf(ErrDrained, "append to %q", a.category)
	}
	a.rows = append(a.rows, rows...)
	return nil
}

// Len returns the number of rows appended so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

// Drain hands over the accumulated rows in insertion order. It succeeds
// exactly once.
func (a *Accumulator) Drain() ([]ClassifiedRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.drained {
		return nil, errors.Wrapf(ErrDrained, "drain %q", a.category)
	}
	a.drained = true
	rows := a.rows
	a.rows = nil
	return rows, nil
}
