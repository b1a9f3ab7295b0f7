package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infracollect/zipexport/internal/engine"
)

func TestExitCode(t *testing.T) {
	notifyErr := &engine.StageError{
		Stage: engine.StageNotifying,
		Err:   fmt.Errorf("%w: %w", engine.ErrNotifyFailed, errors.New("callback returned status 500")),
	}

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "notification failed",
			err:      fmt.Errorf("failed to run export: %w", notifyErr),
			expected: exitNotifyFailed,
		},
		{
			name:     "notification failed unwrapped",
			err:      notifyErr,
			expected: exitNotifyFailed,
		},
		{
			name: "fetch failed",
			err: fmt.Errorf("failed to run export: %w", &engine.StageError{
				Stage: engine.StageFetching,
				Key:   "exports/abc123/a.txt",
				Err:   errors.New("AccessDenied"),
			}),
			expected: exitFailed,
		},
		{
			name:     "plain error",
			err:      errors.New("invalid job"),
			expected: exitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCode(tt.err))
		})
	}
}
