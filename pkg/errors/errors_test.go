package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", ErrNotFound, IsNotFound},
		{"validation", ErrValidation, IsValidation},
		{"invalid state", ErrInvalidState, IsInvalidState},
		{"invalid transition", ErrInvalidTransition, IsInvalidTransition},
		{"nothing to do", ErrNothingToDo, IsNothingToDo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("loading snapshot: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(errors.New("other")))
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil, "a.txt"))
}

func TestClassifyError_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"not exist", &os.PathError{Op: "rename", Path: "a.txt", Err: fs.ErrNotExist}, ErrMissingSource},
		{"permission", &os.PathError{Op: "open", Path: "a.txt", Err: fs.ErrPermission}, ErrPermissionDenied},
		{"cross device", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}, ErrCrossDevice},
		{"disk full", &os.PathError{Op: "write", Path: "b", Err: syscall.ENOSPC}, ErrDiskFull},
		{"read-only filesystem", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EROFS}, ErrReadOnly},
		{"read in message is not a code", errors.New("read a.txt: input/output error"), ErrMoveFailed},
		{"other", errors.New("boom"), ErrMoveFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ie := ClassifyError(tt.err, "a.txt")
			require.NotNil(t, ie)
			assert.Equal(t, tt.want, ie.Code)
			assert.Equal(t, "a.txt", ie.Item)
			assert.ErrorIs(t, ie, tt.err)
		})
	}
}

func TestIsSkippable(t *testing.T) {
	missing := ClassifyError(&os.PathError{Op: "stat", Path: "x", Err: fs.ErrNotExist}, "x")
	denied := ClassifyError(&os.PathError{Op: "stat", Path: "x", Err: fs.ErrPermission}, "x")

	assert.True(t, IsSkippable(fmt.Errorf("apply: %w", missing)))
	assert.False(t, IsSkippable(denied))
	assert.False(t, IsSkippable(errors.New("plain")))
}

func TestDescribe(t *testing.T) {
	for code := range ErrorCodeRegistry {
		info := Describe(code)
		assert.Equal(t, code, info.Code)
		assert.NotEmpty(t, info.Description, "code %s", code)
		assert.NotEmpty(t, info.SuggestedAction, "code %s", code)
	}

	unknown := Describe("mystery")
	assert.Equal(t, ErrorCode("mystery"), unknown.Code)
	assert.NotEmpty(t, unknown.SuggestedAction)
}

func TestInvariantError(t *testing.T) {
	err := &InvariantError{Path: "/navi/ACTIVE", Conflict: "/navi/ACTIVE"}
	wrapped := fmt.Errorf("mailroom run: %w", err)

	assert.True(t, IsInvariant(wrapped))
	assert.Equal(t, ExitInvariant, ExitCode(wrapped))
	assert.Contains(t, err.Error(), "/navi/ACTIVE")
	assert.Contains(t, err.Help(), "Run aborted")

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("ordinary")))
	assert.False(t, IsInvariant(errors.New("ordinary")))
}
