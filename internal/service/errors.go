package service

import (
	"errors"
	"fmt"
	"strings"
)

// Service errors.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserNotFound      = errors.New("user not found")
	ErrGroupNotFound     = errors.New("group not found")
	ErrEmailTaken        = errors.New("email already in use")
	ErrDanglingReference = errors.New("creator user does not exist")
	ErrUserOwnsGroups    = errors.New("user owns groups and cannot be discarded")
)

// Workflow steps reported by AmbiguousOutcomeError.
const (
	StepCreateUser  = "create_user"
	StepCreateGroup = "create_group"
	StepProvision   = "provision"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every invalid field of a request. No write is
// performed when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidInput) hold for validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// HasField reports whether name is among the invalid fields.
func (e *ValidationError) HasField(name string) bool {
	for _, f := range e.Fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

// PartialProvisioningFailure is returned when the user was created but the
// group was not. UserID identifies the orphaned user.
type PartialProvisioningFailure struct {
	ProvisionID string
	UserID      int64
	Cause       error
}

func (e *PartialProvisioningFailure) Error() string {
	return fmt.Sprintf("provisioning %s: user %d created but group creation failed: %v", e.ProvisionID, e.UserID, e.Cause)
}

func (e *PartialProvisioningFailure) Unwrap() error {
	return e.Cause
}

// AmbiguousOutcomeError is returned when a write may or may not have been
// committed. Callers must re-read state before retrying.
// UserID is set when the user step is known to have succeeded.
type AmbiguousOutcomeError struct {
	ProvisionID string
	Step        string
	UserID      int64
	Cause       error
}

func (e *AmbiguousOutcomeError) Error() string {
	if e.ProvisionID != "" {
		return fmt.Sprintf("provisioning %s: outcome of %s unknown: %v", e.ProvisionID, e.Step, e.Cause)
	}
	return fmt.Sprintf("outcome of %s unknown: %v", e.Step, e.Cause)
}

func (e *AmbiguousOutcomeError) Unwrap() error {
	return e.Cause
}
