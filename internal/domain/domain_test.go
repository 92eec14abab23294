package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStateTransitions(t *testing.T) {
	assert.True(t, StateQueued.CanTransition(StateRunning))
	assert.True(t, StateQueued.CanTransition(StateCancelled))
	assert.True(t, StateRunning.CanTransition(StateSucceeded))
	assert.True(t, StateRunning.CanTransition(StateCancelled))

	assert.False(t, StateQueued.CanTransition(StateSucceeded))
	assert.False(t, StateRunning.CanTransition(StateQueued))
	assert.False(t, StateSucceeded.CanTransition(StateFailed))
	assert.False(t, StateCancelled.CanTransition(StateRunning))
}

func TestTransferProgressPercent(t *testing.T) {
	assert.Equal(t, 0, TransferProgress{Transferred: 10, Total: 0}.Percent())
	assert.False(t, TransferProgress{Transferred: 10, Total: -1}.Known())
	assert.Equal(t, 33, TransferProgress{Transferred: 1, Total: 3}.Percent())
	assert.Equal(t, 100, TransferProgress{Transferred: 3, Total: 3}.Percent())
}

func TestClassify(t *testing.T) {
	cases := map[error]FailureKind{
		nil:                                   FailureNone,
		fmt.Errorf("read: %w", ErrNetwork):    FailureNetwork,
		fmt.Errorf("mkdir: %w", ErrStorage):   FailureStorage,
		fmt.Errorf("x: %w", ErrArchiveCorrupt): FailureArchiveCorrupt,
		ErrCancelled:                          FailureCancelled,
		context.Canceled:                      FailureCancelled,
		fmt.Errorf("boom"):                    FailureUnknown,
	}
	for err, want := range cases {
		assert.Equal(t, want, Classify(err), "error %v", err)
	}
}

func TestSessionSnapshotTerminal(t *testing.T) {
	assert.False(t, SessionSnapshot{}.Terminal())
	assert.True(t, SessionSnapshot{Total: 2, Succeeded: 1, Failed: 1}.Terminal())
	assert.True(t, SessionSnapshot{Total: 2, Queued: 1, Succeeded: 1}.Active())
}
