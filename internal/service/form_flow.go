package service

import (
	"context"
	"sync"

	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

// FormPhase is the lifecycle position of a create/edit form.
type FormPhase string

// Form phases.
const (
	FormClosed     FormPhase = "closed"
	FormOpen       FormPhase = "open"
	FormSubmitting FormPhase = "submitting"
)

// FormMode distinguishes creating a record from editing one.
type FormMode string

// Form modes.
const (
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// FormSubmitFunc performs the mutation for a submitted form. id is empty in create mode.
type FormSubmitFunc[T any] func(ctx context.Context, mode FormMode, id string, values T) error

// FormSnapshot is a read-only copy of a form.
type FormSnapshot[T any] struct {
	Phase    FormPhase `json:"phase"`
	Mode     FormMode  `json:"mode,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	Values   T         `json:"values"`
	Error    string    `json:"error,omitempty"`
}

// FormFlow drives a modal create/edit form: Closed, Open, Submitting. A failed
// submission returns to Open with the values kept; a successful one closes and
// clears the form. Only one submission may be in flight.
type FormFlow[T any] struct {
	mu       sync.Mutex
	phase    FormPhase
	mode     FormMode
	targetID string
	values   T
	lastErr  error
}

// NewFormFlow returns a closed form.
func NewFormFlow[T any]() *FormFlow[T] {
	return &FormFlow[T]{phase: FormClosed}
}

// OpenCreate opens an empty form, or one seeded with initial values.
func (f *FormFlow[T]) OpenCreate(initial T) error {
	return f.open(FormCreate, "", initial)
}

// OpenEdit opens the form prefilled with the record being edited.
func (f *FormFlow[T]) OpenEdit(id string, values T) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "record id is required")
	}
	return f.open(FormEdit, id, values)
}

func (f *FormFlow[T]) open(mode FormMode, id string, values T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == FormSubmitting {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "a submission is already in progress")
	}
	f.phase = FormOpen
	f.mode = mode
	f.targetID = id
	f.values = values
	f.lastErr = nil
	return nil
}

// Edit replaces the values of an open form.
func (f *FormFlow[T]) Edit(values T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != FormOpen {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "form is not open")
	}
	f.values = values
	return nil
}

// Submit runs fn with the current values.
func (f *FormFlow[T]) Submit(ctx context.Context, fn FormSubmitFunc[T]) error {
	f.mu.Lock()
	switch f.phase {
	case FormClosed:
		f.mu.Unlock()
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "form is not open")
	case FormSubmitting:
		f.mu.Unlock()
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "a submission is already in progress")
	}
	f.phase = FormSubmitting
	mode, id, values := f.mode, f.targetID, f.values
	f.mu.Unlock()

	err := fn(ctx, mode, id, values)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.phase = FormOpen
		f.lastErr = err
		return err
	}
	f.reset()
	return nil
}

// Cancel closes the form and clears it. A form cannot be cancelled mid-submission.
func (f *FormFlow[T]) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == FormSubmitting {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "a submission is already in progress")
	}
	f.reset()
	return nil
}

// Snapshot returns the current form state.
func (f *FormFlow[T]) Snapshot() FormSnapshot[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := FormSnapshot[T]{Phase: f.phase, Mode: f.mode, TargetID: f.targetID, Values: f.values}
	if f.lastErr != nil {
		snap.Error = appErrors.FromError(f.lastErr).Message
	}
	return snap
}

func (f *FormFlow[T]) reset() {
	var zero T
	f.phase = FormClosed
	f.mode = ""
	f.targetID = ""
	f.values = zero
	f.lastErr = nil
}
