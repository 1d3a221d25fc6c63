// Package errors provides the standardized error taxonomy for the critic
// engine. Fatality is part of the type: structural and reference errors
// reject the containing document, advisory and ambiguity errors never do.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the four diagnostic classes.
var (
	// ErrStructural indicates a MUST rule of the encoding profile was
	// broken. Fatal for the containing document.
	ErrStructural = errors.New("structural violation")
	// ErrAdvisory indicates a SHOULD rule was broken. Processing continues.
	ErrAdvisory = errors.New("advisory violation")
	// ErrReference indicates a dangling or duplicate identifier in
	// correction or anchor markup. Fatal, because downstream resolution
	// becomes undefined.
	ErrReference = errors.New("reference error")
	// ErrAmbiguity indicates markup the engine resolved deterministically
	// but an editor should review. Informational.
	ErrAmbiguity = errors.New("ambiguous markup")
)

// StructuralError is a broken MUST rule with its location.
type StructuralError struct {
	Rule     string // rule identifier (e.g. "structure/nesting")
	Location string // human-readable position in the document
	Message  string
}

func (e *StructuralError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s at %s: %s", e.Rule, e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *StructuralError) Unwrap() error { return ErrStructural }

// ReferenceError is a dangling or duplicate identifier. Locations lists
// every occurrence so authors can fix all of them in one pass.
type ReferenceError struct {
	Rule      string
	ID        string   // the offending identifier
	Locations []string // every location involved (both sides of a duplicate)
	Message   string
}

func (e *ReferenceError) Error() string {
	if len(e.Locations) > 0 {
		return fmt.Sprintf("%s for %q at %s: %s",
			e.Rule, e.ID, strings.Join(e.Locations, ", "), e.Message)
	}
	return fmt.Sprintf("%s for %q: %s", e.Rule, e.ID, e.Message)
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

// AdvisoryError is a broken SHOULD rule.
type AdvisoryError struct {
	Rule     string
	Location string
	Message  string
}

func (e *AdvisoryError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s at %s: %s", e.Rule, e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *AdvisoryError) Unwrap() error { return ErrAdvisory }

// AmbiguityError is markup resolved deterministically by rule, reported so
// editors can review the outcome.
type AmbiguityError struct {
	Rule     string
	Location string
	Message  string
}

func (e *AmbiguityError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s at %s: %s", e.Rule, e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *AmbiguityError) Unwrap() error { return ErrAmbiguity }

// NewStructural creates a StructuralError.
func NewStructural(rule, location, message string) *StructuralError {
	return &StructuralError{Rule: rule, Location: location, Message: message}
}

// NewReference creates a ReferenceError.
func NewReference(rule, id, message string, locations ...string) *ReferenceError {
	return &ReferenceError{Rule: rule, ID: id, Message: message, Locations: locations}
}

// NewAdvisory creates an AdvisoryError.
func NewAdvisory(rule, location, message string) *AdvisoryError {
	return &AdvisoryError{Rule: rule, Location: location, Message: message}
}

// NewAmbiguity creates an AmbiguityError.
func NewAmbiguity(rule, location, message string) *AmbiguityError {
	return &AmbiguityError{Rule: rule, Location: location, Message: message}
}

// IsFatal reports whether err rejects the containing document.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStructural) || errors.Is(err, ErrReference)
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
