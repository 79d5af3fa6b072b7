package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesOnCode(t *testing.T) {
	err := NotFound("MatrixAt", "C1/M1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAlreadyExists)

	wrapped := fmt.Errorf("step 3: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestError_MessageCarriesContext(t *testing.T) {
	err := ShapeMismatch("GetTypedOrFail", "C1/M1/A1", "[3]", "[1]")
	assert.Equal(t, `GetTypedOrFail: shape mismatch "C1/M1/A1": expected [3], got [1]`, err.Error())

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "[3]", e.Expected)
	assert.Equal(t, "[1]", e.Actual)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeInvalidArgument, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeStructuralVersionTooOld, CodeOf(VersionTooOld("OpenFile", 7, 6)))
	assert.Equal(t, -10003, int(CodeOf(InvalidName("CreateContainer", "", "empty"))))
}

func TestCorrupt_Unwraps(t *testing.T) {
	cause := errors.New("digest mismatch")
	err := Corrupt("ReadDataset", "C1/M1/A1", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrCorrupt)
}
