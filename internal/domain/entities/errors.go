package entities

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures
type ErrorKind string

// Failure kinds. A missing optional file is never an error and has no kind.
const (
	KindAuthentication ErrorKind = "authentication"
	KindRemoteService  ErrorKind = "remote_service"
	KindArtifactUpload ErrorKind = "artifact_upload"
)

// Sentinels usable with errors.Is against any *PublishError of the same kind
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrRemoteService  = errors.New("remote service rejected request")
	ErrArtifactUpload = errors.New("artifact upload rejected")
)

// PublishError carries the kind of failure, the operation that produced it and the cause
type PublishError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PublishError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels
func (e *PublishError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrRemoteService:
		return e.Kind == KindRemoteService
	case ErrArtifactUpload:
		return e.Kind == KindArtifactUpload
	default:
		return false
	}
}

// NewAuthenticationError wraps err as an authentication failure
func NewAuthenticationError(op string, err error) *PublishError {
	return &PublishError{Kind: KindAuthentication, Op: op, Err: err}
}

// NewRemoteServiceError wraps err as a remote service rejection
func NewRemoteServiceError(op string, err error) *PublishError {
	return &PublishError{Kind: KindRemoteService, Op: op, Err: err}
}

// NewArtifactUploadError wraps err as a rejected artifact upload
func NewArtifactUploadError(op string, err error) *PublishError {
	return &PublishError{Kind: KindArtifactUpload, Op: op, Err: err}
}

// KindOf returns the kind of the first PublishError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
