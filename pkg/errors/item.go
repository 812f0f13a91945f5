package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// ErrorCode represents a classified per-item failure.
type ErrorCode string

const (
	ErrMissingSource     ErrorCode = "missing_source"
	ErrPermissionDenied  ErrorCode = "permission_denied"
	ErrUnreadableContent ErrorCode = "unreadable_content"
	ErrCrossDevice       ErrorCode = "cross_device"
	ErrDiskFull          ErrorCode = "disk_full"
	ErrReadOnly          ErrorCode = "read_only_filesystem"
	ErrMoveFailed        ErrorCode = "move_failed"
)

// ItemError is a structured error for a single intake item. It never
// escapes the item loop: pipelines record it in the run report and move on.
type ItemError struct {
	Code    ErrorCode
	Item    string
	Message string
	Cause   error
}

func (e *ItemError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Item, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ItemError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects a filesystem error and returns an *ItemError with the
// appropriate code. Unknown errors become ErrMoveFailed.
func ClassifyError(err error, item string) *ItemError {
	if err == nil {
		return nil
	}

	ie := &ItemError{
		Item:    item,
		Message: err.Error(),
		Cause:   err,
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		ie.Code = ErrMissingSource
		ie.Message = "source file not found"
	case errors.Is(err, fs.ErrPermission):
		ie.Code = ErrPermissionDenied
		ie.Message = "permission denied"
	case errors.Is(err, syscall.EXDEV):
		ie.Code = ErrCrossDevice
	case errors.Is(err, syscall.ENOSPC):
		ie.Code = ErrDiskFull
	case errors.Is(err, syscall.EROFS):
		ie.Code = ErrReadOnly
	default:
		ie.Code = ErrMoveFailed
	}

	return ie
}

// CodeOf returns the ErrorCode of the first *ItemError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// IsSkippable returns true if the item can be skipped without counting as a
// failure (the source is simply gone, usually because an earlier run moved it).
func IsSkippable(err error) bool {
	return CodeOf(err) == ErrMissingSource
}
