package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownResourceType is matched by every UnknownTypeError
	ErrUnknownResourceType = errors.New("unknown resource type")
	// ErrRetentionFloorUnavailable means no since-time can be computed for a type
	ErrRetentionFloorUnavailable = errors.New("retention floor unavailable")
	// ErrBeforeRetention is returned by stores for writes older than the retention floor
	ErrBeforeRetention = errors.New("write before retention floor")
)

// UnknownTypeError is returned for tags outside the supported resource types
type UnknownTypeError struct {
	Type ResourceType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown resource type %q", string(e.Type))
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownResourceType
}

// ResourceError is a collaborator failure scoped to one resource's cycle
type ResourceError struct {
	Type     ResourceType
	Resource string
	Op       string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Type, e.Resource, e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// TypeError is an invariant violation that fails a whole resource type for the cycle
type TypeError struct {
	Type ResourceType
	Op   string
	Err  error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Op, e.Err)
}

func (e *TypeError) Unwrap() error { return e.Err }

// FailureNote is the user-visible trace of a failed resource in alert and digest output
type FailureNote struct {
	Type     ResourceType `json:"type"`
	Resource string       `json:"resource,omitempty"`
	Group    string       `json:"group,omitempty"`
	Message  string       `json:"message"`
}
