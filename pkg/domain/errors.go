package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	ErrPrecondition = errors.New("precondition violated")
	ErrValidation   = errors.New("validation failed")
	ErrStorageWrite = errors.New("storage write failed")
)

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// PreconditionError is returned when a mutator is invoked on a record that is
// not in a state the operation accepts. No write happens.
type PreconditionError struct {
	Entity    EntityType
	ID        int
	Operation string
	Current   string
	Allowed   []string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in state %q (requires %s)",
		e.Operation, e.Entity, e.ID, e.Current, strings.Join(e.Allowed, " or "))
}

// Is makes PreconditionError match ErrPrecondition.
func (e PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// ValidationError carries field-level messages for inline display.
type ValidationError struct {
	Fields map[string]string
}

func (e ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes ValidationError match ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "write blocked by rules"
}
