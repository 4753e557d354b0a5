package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueScorePriorityWins(t *testing.T) {
	// A later high-priority enqueue still beats an earlier low-priority one.
	low := QueueScore(5, 1)
	high := QueueScore(9, 2)
	require.Greater(t, high, low)
}

func TestQueueScoreFIFOWithinPriority(t *testing.T) {
	first := QueueScore(5, 10)
	second := QueueScore(5, 11)
	// Max-pop dequeues the higher score, so earlier sequence must score higher.
	require.Greater(t, first, second)
}

func TestQueueScoreClampsPriority(t *testing.T) {
	require.Equal(t, QueueScore(PriorityMin, 7), QueueScore(-3, 7))
	require.Equal(t, QueueScore(PriorityMax, 7), QueueScore(99, 7))
}

func TestQueueScoreExtremes(t *testing.T) {
	// The lowest-priority earliest entry still outranks the same priority a
	// billion enqueues later, and never crosses into the next priority band.
	require.Greater(t, QueueScore(1, 1), QueueScore(1, 1_000_000_000))
	require.Greater(t, QueueScore(2, 1_000_000_000), QueueScore(1, 1))
}

func TestKnownType(t *testing.T) {
	for _, typ := range []string{TypeConvertToDaisy, TypeConvertToEpub, TypeDaisyToEpub, TypeFullPipeline} {
		require.True(t, KnownType(typ), typ)
	}
	require.False(t, KnownType(""))
	require.False(t, KnownType("convert_to_daisy"))
}

func TestTerminal(t *testing.T) {
	j := &Job{Status: StatusQueued}
	require.False(t, j.Terminal())
	j.Status = "generate-daisy"
	require.False(t, j.Terminal())
	j.Status = StatusFinished
	require.True(t, j.Terminal())
	j.Status = StatusFailed
	require.True(t, j.Terminal())
}

func TestEventOf(t *testing.T) {
	j := &Job{ID: "abc", Status: StatusStarted, Progress: 15, Message: "working"}
	ev := EventOf(j)
	require.Equal(t, "abc", ev.ID)
	require.Equal(t, StatusStarted, ev.Status)
	require.Equal(t, 15, ev.Progress)
	require.Equal(t, "working", ev.Message)
}
