package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticPlanner(subtasks ...string) PlannerFunc {
	return func(ctx context.Context, goal string) ([]string, error) {
		return subtasks, nil
	}
}

func echoWorker(name string, specialties ...string) Worker {
	return Worker{
		Name:        name,
		Specialties: specialties,
		Run: func(ctx context.Context, subtask string, reviewNotes []string) (string, error) {
			return fmt.Sprintf("%s did: %s", name, subtask), nil
		},
	}
}

func acceptAll(ctx context.Context, task *TaskContext) (Review, error) {
	return Review{Accept: true}, nil
}

func TestRunHappyPath(t *testing.T) {
	orch, err := New(
		staticPlanner("write the intro", "write the outro"),
		[]Worker{echoWorker("writer")},
		acceptAll,
		Config{},
	)
	require.NoError(t, err)

	result := orch.Run(context.Background(), "write a post")

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.NotEmpty(t, result.PipelineID)
	assert.Equal(t, []string{"write the intro", "write the outro"}, result.Subtasks)
	assert.Contains(t, result.Artifacts["writer"], "write the intro")
	assert.Contains(t, result.Artifacts["writer"], "write the outro")
	assert.Equal(t, 0, result.RevisionCount)
}

func TestRunRoutesBySpecialty(t *testing.T) {
	orch, err := New(
		staticPlanner("research the topic", "draft the code"),
		[]Worker{
			echoWorker("researcher", "research"),
			echoWorker("coder", "code"),
		},
		acceptAll,
		Config{},
	)
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")

	require.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Contains(t, result.Artifacts["researcher"], "research the topic")
	assert.Contains(t, result.Artifacts["coder"], "draft the code")
}

func TestRunUnmatchedSubtaskGoesToDefaultWorker(t *testing.T) {
	orch, err := New(
		staticPlanner("something nobody claims"),
		[]Worker{
			echoWorker("first", "alpha"),
			echoWorker("second", "beta"),
		},
		acceptAll,
		Config{},
	)
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")

	require.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Contains(t, result.Artifacts, "first")
	assert.NotContains(t, result.Artifacts, "second")
}

func TestRunWorkersExecuteConcurrently(t *testing.T) {
	const n = 3
	var barrier sync.WaitGroup
	barrier.Add(n)

	workers := make([]Worker, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("w%d", i)
		workers = append(workers, Worker{
			Name:        name,
			Specialties: []string{name},
			Run: func(ctx context.Context, subtask string, reviewNotes []string) (string, error) {
				// Deadlocks unless all workers run at the same time.
				barrier.Done()
				barrier.Wait()
				return "done", nil
			},
		})
	}

	orch, err := New(staticPlanner("w0 task", "w1 task", "w2 task"), workers, acceptAll, Config{})
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Len(t, result.Artifacts, n)
}

func TestRunRevisionLoopRedispatchesOnlyFlaggedWorkers(t *testing.T) {
	var aRuns, bRuns atomic.Int32

	workerA := Worker{
		Name:        "alpha",
		Specialties: []string{"alpha"},
		Run: func(ctx context.Context, subtask string, reviewNotes []string) (string, error) {
			aRuns.Add(1)
			return "alpha output", nil
		},
	}
	workerB := Worker{
		Name:        "beta",
		Specialties: []string{"beta"},
		Run: func(ctx context.Context, subtask string, reviewNotes []string) (string, error) {
			bRuns.Add(1)
			return "beta output", nil
		},
	}

	reviews := 0
	reviewer := func(ctx context.Context, task *TaskContext) (Review, error) {
		reviews++
		if reviews == 1 {
			return Review{Accept: false, Issues: []string{"alpha missed the point"}}, nil
		}
		return Review{Accept: true}, nil
	}

	orch, err := New(staticPlanner("alpha task", "beta task"), []Worker{workerA, workerB}, reviewer, Config{})
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, result.RevisionCount)
	assert.Equal(t, int32(2), aRuns.Load(), "flagged worker should run twice")
	assert.Equal(t, int32(1), bRuns.Load(), "unflagged worker should run once")
	assert.Equal(t, []string{"alpha missed the point"}, result.ReviewNotes)
}

func TestRunRevisedWorkerSeesReviewNotes(t *testing.T) {
	var sawNotes atomic.Bool
	worker := Worker{
		Name: "writer",
		Run: func(ctx context.Context, subtask string, reviewNotes []string) (string, error) {
			if len(reviewNotes) > 0 && strings.Contains(reviewNotes[0], "too terse") {
				sawNotes.Store(true)
			}
			return "draft", nil
		},
	}

	reviews := 0
	reviewer := func(ctx context.Context, task *TaskContext) (Review, error) {
		reviews++
		if reviews == 1 {
			return Review{Accept: false, Issues: []string{"writer was too terse"}}, nil
		}
		return Review{Accept: true}, nil
	}

	orch, err := New(staticPlanner("write it"), []Worker{worker}, reviewer, Config{})
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.True(t, sawNotes.Load())
}

func TestRunAcceptsWithReservationsAtRevisionBound(t *testing.T) {
	rejectAll := func(ctx context.Context, task *TaskContext) (Review, error) {
		return Review{Accept: false, Issues: []string{"worker output still wrong"}}, nil
	}

	orch, err := New(staticPlanner("task"), []Worker{echoWorker("worker")}, rejectAll, Config{MaxRevisions: 2})
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")

	assert.Equal(t, OutcomeAcceptedWithReservations, result.Outcome)
	assert.Equal(t, 2, result.RevisionCount)
	assert.Equal(t, []string{"worker output still wrong"}, result.Issues)
	assert.NoError(t, result.Err)
	// The artifacts from the last revision are still delivered.
	assert.Contains(t, result.Artifacts, "worker")
}

func TestRunStageRetriesOnceThenFails(t *testing.T) {
	var attempts atomic.Int32
	flakyPlanner := func(ctx context.Context, goal string) ([]string, error) {
		attempts.Add(1)
		return nil, errors.New("model overloaded")
	}

	orch, err := New(flakyPlanner, []Worker{echoWorker("w")}, acceptAll, Config{StageRetryDelay: 1})
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")

	assert.Equal(t, OutcomeStageFailed, result.Outcome)
	assert.Equal(t, int32(2), attempts.Load(), "stage should be attempted exactly twice")

	var stageErr *StageError
	require.ErrorAs(t, result.Err, &stageErr)
	assert.Equal(t, "planner", stageErr.Role)
}

func TestRunStageRecoversOnRetry(t *testing.T) {
	var attempts atomic.Int32
	flakyPlanner := func(ctx context.Context, goal string) ([]string, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return []string{"task"}, nil
	}

	orch, err := New(flakyPlanner, []Worker{echoWorker("w")}, acceptAll, Config{StageRetryDelay: 1})
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")
	assert.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestRunWorkerFailureSurfacesAsStageError(t *testing.T) {
	broken := Worker{
		Name: "broken",
		Run: func(ctx context.Context, subtask string, reviewNotes []string) (string, error) {
			return "", errors.New("tool meltdown")
		},
	}

	orch, err := New(staticPlanner("task"), []Worker{broken}, acceptAll, Config{StageRetryDelay: 1})
	require.NoError(t, err)

	result := orch.Run(context.Background(), "goal")

	assert.Equal(t, OutcomeStageFailed, result.Outcome)
	var stageErr *StageError
	require.ErrorAs(t, result.Err, &stageErr)
	assert.Equal(t, "broken", stageErr.Role)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blockedPlanner := func(ctx context.Context, goal string) ([]string, error) {
		return nil, ctx.Err()
	}

	orch, err := New(blockedPlanner, []Worker{echoWorker("w")}, acceptAll, Config{})
	require.NoError(t, err)

	result := orch.Run(ctx, "goal")
	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestNewValidatesRoles(t *testing.T) {
	_, err := New(nil, []Worker{echoWorker("w")}, acceptAll, Config{})
	assert.Error(t, err)

	_, err = New(staticPlanner("t"), nil, acceptAll, Config{})
	assert.Error(t, err)

	_, err = New(staticPlanner("t"), []Worker{echoWorker("w")}, nil, Config{})
	assert.Error(t, err)
}
