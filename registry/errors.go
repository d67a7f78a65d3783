package registry

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"component-registry/contentstore"
	"component-registry/orm"
)

// ErrorKind classifies public-facing registry errors.
type ErrorKind string

const (
	KindNotFound             ErrorKind = "not_found"
	KindValidation           ErrorKind = "validation"
	KindDraftRequired        ErrorKind = "draft_required"
	KindVersionCollision     ErrorKind = "version_collision"
	KindPartialFailure       ErrorKind = "partial_failure"
	KindEmbeddingUnavailable ErrorKind = "embedding_unavailable"
	KindInternal             ErrorKind = "internal"
)

// ServiceError represents public-facing errors from the registry service
type ServiceError struct {
	Kind    ErrorKind
	Code    codes.Code
	Message string
	Inner   error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Inner
}

func (e *ServiceError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind == kind
	}

	return false
}

func newNotFoundError(what string, inner error) error {
	return &ServiceError{
		Kind:    KindNotFound,
		Code:    codes.NotFound,
		Message: "Not found: " + what,
		Inner:   inner,
	}
}

func newValidationError(reason string) error {
	return &ServiceError{
		Kind:    KindValidation,
		Code:    codes.InvalidArgument,
		Message: "Validation failed: " + reason,
	}
}

func newDraftRequiredError(componentID string) error {
	return &ServiceError{
		Kind:    KindDraftRequired,
		Code:    codes.FailedPrecondition,
		Message: "Publish requires a draft for component " + componentID,
	}
}

func newVersionCollisionError(componentID string, versionNumber int, inner error) error {
	return &ServiceError{
		Kind: KindVersionCollision,
		Code: codes.Aborted,
		Message: fmt.Sprintf(
			"Concurrent publish raced on version %d of component %s",
			versionNumber, componentID,
		),
		Inner: inner,
	}
}

func newEmbeddingUnavailableError(inner error) error {
	return &ServiceError{
		Kind:    KindEmbeddingUnavailable,
		Code:    codes.Unavailable,
		Message: "Embedding model unavailable",
		Inner:   inner,
	}
}

// SubOpError names one failed sub-operation of a multi-store write.
type SubOpError struct {
	Op  string
	Err error
}

// PartialFailureError reports a multi-store operation where the content
// store committed but one or more derived writes failed. The content store
// remains authoritative; a later reindex repairs the derived stores.
type PartialFailureError struct {
	Operation string
	Failed    []SubOpError
}

func (e *PartialFailureError) Error() string {
	ops := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ops = append(ops, f.Op)
	}

	return fmt.Sprintf(
		"partial failure during %s: failed sub-operations [%s]",
		e.Operation, strings.Join(ops, ", "),
	)
}

func newPartialFailureError(operation string, failed []SubOpError) error {
	return &ServiceError{
		Kind:    KindPartialFailure,
		Code:    codes.DataLoss,
		Message: (&PartialFailureError{Operation: operation, Failed: failed}).Error(),
		Inner:   &PartialFailureError{Operation: operation, Failed: failed},
	}
}

// wrapServiceError converts internal errors to user-friendly service errors
func wrapServiceError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}

	var notFoundErr *orm.NotFoundError
	if errors.As(err, &notFoundErr) {
		return &ServiceError{
			Kind:    KindNotFound,
			Code:    codes.NotFound,
			Message: "Not found during " + operation,
			Inner:   err,
		}
	}

	var conflictErr *orm.ConflictError
	if errors.As(err, &conflictErr) {
		return &ServiceError{
			Kind:    KindVersionCollision,
			Code:    codes.Aborted,
			Message: "Conflicting concurrent write during " + operation,
			Inner:   err,
		}
	}

	var badInputErr *orm.BadInputError
	if errors.As(err, &badInputErr) {
		return &ServiceError{
			Kind:    KindValidation,
			Code:    codes.InvalidArgument,
			Message: "Invalid input during " + operation,
			Inner:   err,
		}
	}

	if errors.Is(err, contentstore.ErrNotFound) {
		return &ServiceError{
			Kind:    KindNotFound,
			Code:    codes.NotFound,
			Message: "Not found during " + operation,
			Inner:   err,
		}
	}

	return &ServiceError{
		Kind:    KindInternal,
		Code:    codes.Internal,
		Message: "Internal error during " + operation,
		Inner:   err,
	}
}
