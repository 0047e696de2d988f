package portalErrors

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

var ErrValidationFailed = errors.New("validation failed")

// ErrInvalidPayload is returned when a file payload has no location reference.
var ErrInvalidPayload = fmt.Errorf("invalid payload: %w", ErrValidationFailed)

var ErrPermissionDenied = errors.New("permission denied")

var ErrCannotDeleteLatest = errors.New("cannot delete the latest version")

var ErrDurableWriteFailed = errors.New("durable write failed")

// ErrVersionConflict means the chain moved underneath the caller: the stored
// current version differs from the expected one or a concurrent writer
// already claimed the next number.
var ErrVersionConflict = errors.New("version conflict")

var ErrAlreadyReviewed = errors.New("registration already reviewed")

// ErrPartialInvariantViolation is internal: a crash or race left a version
// chain or cycle set inconsistent. Nothing in the core repairs it.
var ErrPartialInvariantViolation = errors.New("partial invariant violation")
