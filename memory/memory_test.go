package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/store"
)

func TestAppendRejectsInvalidMessages(t *testing.T) {
	mem := New(nil)

	err := mem.Append(model.Message{Role: "narrator", Content: "hm", TokenCount: 1})
	require.ErrorIs(t, err, ErrInvalidMessage)

	err = mem.Append(model.Message{Role: model.RoleUser, Content: "no count"})
	require.ErrorIs(t, err, ErrInvalidMessage)

	assert.Equal(t, 0, mem.Len())
}

func TestUnboundedKeepsEverything(t *testing.T) {
	mem := New(Unbounded{})
	for i := 0; i < 50; i++ {
		require.NoError(t, mem.Append(model.UserMessage("msg", 10)))
	}
	assert.Equal(t, 50, mem.Len())
	assert.Equal(t, TrimReport{}, mem.Trim())
}

func TestSlidingWindowEvictsOldestFirst(t *testing.T) {
	mem := New(SlidingWindow{Max: 2})

	require.NoError(t, mem.Append(model.UserMessage("A", 1)))
	require.NoError(t, mem.Append(model.UserMessage("B", 1)))
	require.NoError(t, mem.Append(model.UserMessage("C", 1)))

	snapshot := mem.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "B", snapshot[0].Content)
	assert.Equal(t, "C", snapshot[1].Content)
}

func TestTokenBudgetProtectsSystemAndLastUser(t *testing.T) {
	mem := New(TokenBudget{Max: 100})

	require.NoError(t, mem.Append(model.SystemMessage("rules", 30)))
	require.NoError(t, mem.Append(model.UserMessage("old question", 40)))
	require.NoError(t, mem.Append(model.AssistantMessage("old answer", 40)))
	require.NoError(t, mem.Append(model.UserMessage("new question", 20)))

	// 130 total: the two old middle messages go, oldest first, until
	// the budget is met.
	snapshot := mem.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "rules", snapshot[0].Content)
	assert.Equal(t, "old answer", snapshot[1].Content)
	assert.Equal(t, "new question", snapshot[2].Content)
	assert.LessOrEqual(t, mem.TokenTotal(), 100)
}

func TestTokenBudgetReportsUnmeetableBudget(t *testing.T) {
	mem := New(TokenBudget{Max: 10})

	require.NoError(t, mem.Append(model.SystemMessage("rules", 8)))
	require.NoError(t, mem.Append(model.UserMessage("a very long question", 50)))

	report := mem.Trim()
	assert.True(t, report.BudgetExceeded)
	// Protected messages stay even though the budget is blown.
	assert.Equal(t, 2, mem.Len())
	assert.Greater(t, mem.TokenTotal(), 10)
}

func TestTrimIsIdempotent(t *testing.T) {
	mem := New(SlidingWindow{Max: 3})
	for i := 0; i < 10; i++ {
		require.NoError(t, mem.Append(model.UserMessage("msg", 5)))
	}

	first := mem.Trim()
	second := mem.Trim()
	assert.Equal(t, 0, first.Evicted)
	assert.Equal(t, 0, second.Evicted)
	assert.Equal(t, 3, mem.Len())
}

func TestSnapshotIsIsolatedFromLaterAppends(t *testing.T) {
	mem := New(nil)
	require.NoError(t, mem.Append(model.UserMessage("first", 1)))

	snapshot := mem.Snapshot()
	require.NoError(t, mem.Append(model.UserMessage("second", 1)))

	assert.Len(t, snapshot, 1)
	assert.Equal(t, "first", snapshot[0].Content)
}

func TestPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()

	mem := New(nil)
	require.NoError(t, mem.Append(model.SystemMessage("rules", 3)))
	require.NoError(t, mem.Append(model.UserMessage("hello", 2)))
	require.NoError(t, mem.Persist(ctx, st, "session-1"))

	restored := New(nil)
	require.NoError(t, restored.Restore(ctx, st, "session-1"))

	assert.Equal(t, mem.Snapshot(), restored.Snapshot())
}

func TestRestoreMissingSnapshot(t *testing.T) {
	mem := New(nil)
	err := mem.Restore(context.Background(), store.NewInMemory(), "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRestoreAppliesPolicy(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()

	big := New(nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, big.Append(model.UserMessage("msg", 5)))
	}
	require.NoError(t, big.Persist(ctx, st, "session-1"))

	bounded := New(SlidingWindow{Max: 4})
	require.NoError(t, bounded.Restore(ctx, st, "session-1"))
	assert.Equal(t, 4, bounded.Len())
}

func TestMustCountTokens(t *testing.T) {
	assert.Greater(t, MustCountTokens("hello world"), 0)
	assert.Equal(t, 0, MustCountTokens(""))
}
