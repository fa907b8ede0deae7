package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	err := New(ErrCodeLockHeld, "write lock held", nil)
	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.True(t, err.Retryable)

	err = New(ErrCodeIdentityMismatch, "repository id conflict", nil)
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.False(t, err.Retryable)

	err = New(ErrCodeIOFailure, "disk gone", nil)
	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, SeverityError, err.Severity)
}

func TestError_FormatsCodeAndMessage(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "bad config", nil)
	assert.Equal(t, "[ERR_102_CONFIG_INVALID] bad config", err.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Wrap(ErrCodeIOFailure, cause)
	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeIOFailure, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeLockHeld, "one", nil)
	b := New(ErrCodeLockHeld, "another", nil)
	assert.True(t, stderrors.Is(a, b))

	c := New(ErrCodeIOFailure, "io", nil)
	assert.False(t, stderrors.Is(a, c))
}

func TestIsCode_WalksErrorChain(t *testing.T) {
	inner := LockHeldError("lock held by another process", nil)
	wrapped := fmt.Errorf("open failed: %w", inner)
	assert.True(t, IsCode(wrapped, ErrCodeLockHeld))
	assert.False(t, IsCode(wrapped, ErrCodeIOFailure))
	assert.False(t, IsCode(nil, ErrCodeLockHeld))
}

func TestLockHeldError_IsRetryableAndFatal(t *testing.T) {
	err := LockHeldError("held", nil)
	assert.True(t, IsRetryable(err))
	assert.True(t, IsFatal(err))
	assert.NotEmpty(t, err.Suggestion)
}

func TestIdentityMismatchError_SuggestsReclaim(t *testing.T) {
	err := IdentityMismatchError("index owned by repository [B]")
	assert.Equal(t, ErrCodeIdentityMismatch, err.Code)
	assert.Contains(t, err.Suggestion, "reclaim")
}

func TestClosedError_IsFatal(t *testing.T) {
	err := ClosedError("merge")
	assert.Equal(t, ErrCodeContextClosed, err.Code)
	assert.True(t, IsFatal(err))
}

func TestWithDetail_Chains(t *testing.T) {
	err := New(ErrCodeIOFailure, "copy failed", nil).
		WithDetail("file", "segments_1").
		WithDetail("dir", "/tmp/idx")
	assert.Equal(t, "segments_1", err.Details["file"])
	assert.Equal(t, "/tmp/idx", err.Details["dir"])
}

func TestGetCodeAndCategory(t *testing.T) {
	err := New(ErrCodeRepositoryIDMissing, "no repository id", nil)
	assert.Equal(t, ErrCodeRepositoryIDMissing, GetCode(err))
	assert.Equal(t, CategoryConfig, GetCategory(err))

	plain := stderrors.New("plain")
	assert.Equal(t, "", GetCode(plain))
}
