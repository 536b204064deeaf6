package ingest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		target error
		stage  Stage
	}{
		{"unreachable", Unreachable("https://example.org", nil, "status 503"), ErrUnreachable, StageFetch},
		{"not found", NotFound("/data", nil, "no files"), ErrNotFound, StageFetch},
		{"malformed", Malformed(nil, "empty payload"), ErrMalformed, StageParse},
		{"missing column", MissingColumn("owid", "location"), ErrMissingColumn, StageReformat},
		{"unparsable date", UnparsableDate("date", 3, "soon"), ErrUnparsableDate, StageUnify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("owid: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.target)

			stage, ok := StageOf(wrapped)
			require.True(t, ok)
			assert.Equal(t, tt.stage, stage)
		})
	}
}

func TestError_DoesNotMatchOtherKinds(t *testing.T) {
	err := Malformed(nil, "ragged row")
	assert.False(t, errors.Is(err, ErrUnreachable))
	assert.False(t, errors.Is(err, ErrUnparsableDate))
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unreachable("https://example.org/daily.csv", cause, "GET failed")

	assert.Equal(t, "fetch failed (unreachable) source=https://example.org/daily.csv: GET failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestStageOf_PlainError(t *testing.T) {
	_, ok := StageOf(errors.New("boom"))
	assert.False(t, ok)
}
