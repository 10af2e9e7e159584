// Package queryerr defines the error taxonomy shared by every stage of the
// field-path query pipeline.
//
// Resolution-phase errors (unknown fields, malformed expressions, collection
// relations without an element type) are raised before anything touches the
// persistence engine and are client faults. Build, execution and mapping
// errors are server faults; they are wrapped with the root entity name and
// never swallowed.
package queryerr

import (
	"errors"
	"fmt"
)

// Code categorizes query errors.
type Code string

const (
	// CodeFieldNotFound indicates a path segment has no matching metadata field.
	CodeFieldNotFound Code = "FIELD_NOT_FOUND"

	// CodeInvalidExpression indicates a malformed operator or value string.
	CodeInvalidExpression Code = "INVALID_EXPRESSION"

	// CodeCollectionTargetUndefined indicates a to-many field whose element
	// type cannot be resolved.
	CodeCollectionTargetUndefined Code = "COLLECTION_TARGET_UNDEFINED"

	// CodeCriteriaBuildFailure indicates the persistence engine rejected the plan.
	CodeCriteriaBuildFailure Code = "CRITERIA_BUILD_FAILURE"

	// CodeQueryExecutionFailure indicates the engine failed while fetching rows.
	CodeQueryExecutionFailure Code = "QUERY_EXECUTION_FAILURE"

	// CodeResultMappingFailure indicates a produced alias cannot be mapped
	// onto the target object shape.
	CodeResultMappingFailure Code = "RESULT_MAPPING_FAILURE"
)

// Fault tells callers which side of a request boundary caused an error.
type Fault int

const (
	// ServerFault is the default for anything that is not a resolution error.
	ServerFault Fault = iota
	// ClientFault marks errors caused by the caller's field/filter strings.
	ClientFault
)

func (f Fault) String() string {
	if f == ClientFault {
		return "client"
	}
	return "server"
}

// Error is the structured error returned by the query pipeline.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Path is the offending field path, when known.
	Path string

	// Entity is the root entity type the query was compiled for.
	Entity string

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Entity != "" {
		msg += fmt.Sprintf(" (entity=%s)", e.Entity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fault classifies the error.
func (e *Error) Fault() Fault {
	switch e.Code {
	case CodeFieldNotFound, CodeInvalidExpression, CodeCollectionTargetUndefined:
		return ClientFault
	default:
		return ServerFault
	}
}

// FieldNotFound creates an error for a path segment with no metadata field.
func FieldNotFound(entity, path, segment string) *Error {
	return &Error{
		Code:    CodeFieldNotFound,
		Message: fmt.Sprintf("field %q not found", segment),
		Path:    path,
		Entity:  entity,
	}
}

// InvalidExpression creates an error for a malformed operator or value string.
func InvalidExpression(path, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidExpression,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
}

// CollectionTargetUndefined creates an error for a to-many field without a
// resolvable element type.
func CollectionTargetUndefined(entity, path, field string) *Error {
	return &Error{
		Code:    CodeCollectionTargetUndefined,
		Message: fmt.Sprintf("collection %q has no resolvable element type", field),
		Path:    path,
		Entity:  entity,
	}
}

// Wrap wraps err with a code and the root entity name. Errors that already
// carry a queryerr code keep it; only the entity is filled in when missing.
func Wrap(code Code, entity string, err error) error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		if qe.Entity == "" {
			qe.Entity = entity
		}
		return err
	}
	return &Error{
		Code:    code,
		Message: codeMessage(code),
		Entity:  entity,
		Err:     err,
	}
}

func codeMessage(code Code) string {
	switch code {
	case CodeCriteriaBuildFailure:
		return "persistence engine rejected the query plan"
	case CodeQueryExecutionFailure:
		return "query execution failed"
	case CodeResultMappingFailure:
		return "result row could not be mapped"
	default:
		return "query failed"
	}
}

// CodeOf returns the code of err, or "" when err is not a query error.
func CodeOf(err error) Code {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// FaultOf classifies any error. Errors outside the taxonomy are server faults.
func FaultOf(err error) Fault {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Fault()
	}
	return ServerFault
}

// IsFieldNotFound reports whether err is a FieldNotFound error.
// Uses errors.As to handle wrapped errors.
func IsFieldNotFound(err error) bool {
	return CodeOf(err) == CodeFieldNotFound
}

// IsInvalidExpression reports whether err is an InvalidExpression error.
func IsInvalidExpression(err error) bool {
	return CodeOf(err) == CodeInvalidExpression
}

// IsCollectionTargetUndefined reports whether err is a CollectionTargetUndefined error.
func IsCollectionTargetUndefined(err error) bool {
	return CodeOf(err) == CodeCollectionTargetUndefined
}

// IsCriteriaBuildFailure reports whether err is a CriteriaBuildFailure error.
func IsCriteriaBuildFailure(err error) bool {
	return CodeOf(err) == CodeCriteriaBuildFailure
}

// IsQueryExecutionFailure reports whether err is a QueryExecutionFailure error.
func IsQueryExecutionFailure(err error) bool {
	return CodeOf(err) == CodeQueryExecutionFailure
}

// IsResultMappingFailure reports whether err is a ResultMappingFailure error.
func IsResultMappingFailure(err error) bool {
	return CodeOf(err) == CodeResultMappingFailure
}
