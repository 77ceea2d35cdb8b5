package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(DimensionMismatch, "vector length mismatch")
	require.Error(t, err)
	assert.Equal(t, "vector length mismatch", err.Error())

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, DimensionMismatch, e.Code())
}

func TestNewf(t *testing.T) {
	err := Newf(OutOfRange, "index %d out of range for size %d", 7, 3)
	assert.Equal(t, "index 7 out of range for size 3", err.Error())
	assert.Equal(t, OutOfRange, CodeOf(err))
}

func TestWrap(t *testing.T) {
	t.Run("wraps and unwraps", func(t *testing.T) {
		cause := stderrors.New("boom")
		err := Wrap(cause, UserFailure, "evolution task failed")
		assert.Equal(t, "evolution task failed: boom", err.Error())
		assert.Equal(t, cause, stderrors.Unwrap(err))
		assert.Equal(t, UserFailure, CodeOf(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, UserFailure, "ignored"))
	})
}

func TestWithFields(t *testing.T) {
	err := New(NotFound, "island not in archipelago")
	err = WithFields(err, Fields{"island": "worker-3"})

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, NotFound, e.Code())
	assert.Equal(t, "worker-3", e.Fields()["island"])
	assert.Contains(t, err.Error(), "island=worker-3")
}

func TestWithFieldsForeignError(t *testing.T) {
	err := WithFields(fmt.Errorf("plain"), Fields{"k": 1})
	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, Unknown, e.Code())
	assert.Equal(t, 1, e.Fields()["k"])
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(stderrors.New("x"), Overflow, "too many islands")
	assert.True(t, stderrors.Is(err, New(Overflow, "anything")))
	assert.False(t, stderrors.Is(err, New(NotFound, "anything")))
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, Unknown, CodeOf(stderrors.New("plain")))
}

func TestCodeOfWalksWrappedChains(t *testing.T) {
	inner := Wrap(stderrors.New("boom"), DimensionMismatch, "bad vector")
	outer := fmt.Errorf("while evolving: %w", inner)
	assert.Equal(t, DimensionMismatch, CodeOf(outer))
}

func TestErrorStringIsDeterministic(t *testing.T) {
	err := WithFields(New(OutOfRange, "index out of range"),
		Fields{"index": 9, "size": 3, "archipelago": "a1"})
	assert.Equal(t, "index out of range (archipelago=a1 index=9 size=3)", err.Error())
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "user_failure", UserFailure.String())
	assert.Equal(t, "contract_violation", ContractViolation.String())
	assert.Equal(t, "unknown", Unknown.String())
}

func TestCheckContext(t *testing.T) {
	assert.NoError(t, CheckContext(context.Background(), "evolution task"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CheckContext(ctx, "evolution task")
	require.Error(t, err)
	assert.Equal(t, Canceled, CodeOf(err))
	assert.True(t, stderrors.Is(err, context.Canceled))
}
