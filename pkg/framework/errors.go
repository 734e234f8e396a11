package framework

import (
	"fmt"
	"strings"
)

// ComponentError is the failure of one named component of a link, e.g.
// the port runner or the MQTT queue.
type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string {
	return e.Component + ": " + e.Err.Error()
}

// Unwrap returns Err.
func (e *ComponentError) Unwrap() error {
	return e.Err
}

// AggregatedError collects failures of components stopped or closed
// together.
type AggregatedError struct {
	Errors []error
}

func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msgs[n] = err.Error()
	}
	return fmt.Sprintf("%d failures: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap returns the collected errors for errors.Is and errors.As.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Add collects errs, skipping nil.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// AddComponent collects err of component as a ComponentError, skipping nil.
func (e *AggregatedError) AddComponent(component string, err error) *AggregatedError {
	if err != nil {
		e.Errors = append(e.Errors, &ComponentError{Component: component, Err: err})
	}
	return e
}

// Aggregate returns nil when nothing failed.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
