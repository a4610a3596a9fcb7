package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlushTraces(t *testing.T) {
	t.Cleanup(func() { shutdown = nil })

	calls := 0
	shutdown = func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		return errors.New("collector unreachable")
	}

	// once from the fatal hook, once from the post run
	flushTraces()
	flushTraces()
	require.Equal(t, 1, calls)
}

func TestFlushTracesWithoutSetup(t *testing.T) {
	shutdown = nil
	require.NotPanics(t, flushTraces)
}
