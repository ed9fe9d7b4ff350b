package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindNotFound, "not_found"},
		{KindDecode, "decode"},
		{KindComparison, "comparison"},
		{KindScanWarning, "scan_warning"},
		{KindNoCandidates, "no_candidates"},
		{KindInvalidInput, "invalid_input"},
		{Kind(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}

func TestError_Message(t *testing.T) {
	err := New(KindDecode, "decode mesh", "chair/train/a.off", errors.New("bad header"))
	assert.Equal(t, "[decode] decode mesh chair/train/a.off: bad header", err.Error())

	bare := New(KindNoCandidates, "find similar", "", nil)
	assert.Equal(t, "[no_candidates] find similar", bare.Error())
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("geometry", "x/train/y.off", nil))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDecode))
}

func TestError_UnwrapReachesCause(t *testing.T) {
	err := Comparison("score", "chair/test/b.off", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrComparison))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWrap_PreservesExistingKind(t *testing.T) {
	inner := Decode("decode", "a", errors.New("eof"))
	wrapped := Wrap(KindComparison, "score", "a", inner)

	kind, ok := GetKind(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindDecode, kind)
	assert.Nil(t, Wrap(KindDecode, "noop", "", nil))
}

func TestPropagates(t *testing.T) {
	assert.True(t, Propagates(NotFound("get", "a", nil)))
	assert.True(t, Propagates(errors.New("unclassified")))
	assert.False(t, Propagates(Comparison("score", "a", nil)))
	assert.False(t, Propagates(ScanWarning("scan", "p", nil)))
	assert.False(t, GetBehavior(ErrComparison).Retryable)
}
