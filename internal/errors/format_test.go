package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeLockHeld, "write lock held", nil).
		WithSuggestion("retry with --wait-lock")

	out := FormatForCLI(err)
	assert.Contains(t, out, "Error: write lock held")
	assert.Contains(t, out, "Suggestion: retry with --wait-lock")
	assert.Contains(t, out, "[ERR_206_LOCK_HELD]")
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(stderrors.New("disk gone"))
	assert.Contains(t, out, "disk gone")
	assert.Contains(t, out, "[ERR_501_INTERNAL]")
}

func TestFormatForCLI_NilIsEmpty(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForUser_DebugIncludesCause(t *testing.T) {
	cause := stderrors.New("flock failed")
	err := New(ErrCodeLockHeld, "write lock held", cause)

	plain := FormatForUser(err, false)
	assert.NotContains(t, plain, "flock failed")

	debug := FormatForUser(err, true)
	assert.Contains(t, debug, "flock failed")
}
