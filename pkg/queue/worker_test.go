package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/pkg/config"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/pkg/services"
	"github.com/adscout/adscout/test/util"
)

// stubExecutor returns a fixed result and records what it saw.
type stubExecutor struct {
	status searchrun.Status
	seen   chan int
}

func (s *stubExecutor) Execute(_ context.Context, run *ent.SearchRun) *ExecutionResult {
	if s.seen != nil {
		s.seen <- run.ID
	}
	return &ExecutionResult{Status: s.status}
}

func submitRun(t *testing.T, client *ent.Client, priority int) *ent.SearchRun {
	t.Helper()
	run, err := services.NewRunService(client).Submit(context.Background(), models.CreateRunRequest{
		UserID:    "tenant-1",
		Keywords:  []string{"kw"},
		Countries: []string{"FR"},
		Priority:  priority,
	})
	require.NoError(t, err)
	return run
}

func testQueueConfig() *config.QueueConfig {
	cfg := config.DefaultQueueConfig()
	cfg.PollInterval = 50 * time.Millisecond
	cfg.PollIntervalJitter = 10 * time.Millisecond
	cfg.HeartbeatInterval = 50 * time.Millisecond
	return cfg
}

func TestClaimNextRunPriorityOrder(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()

	low := submitRun(t, client, 0)
	high := submitRun(t, client, 5)
	mid := submitRun(t, client, 2)

	w := NewWorker("w-0", "pod-test", client, testQueueConfig(), &stubExecutor{status: searchrun.StatusCompleted}, noopRegistry{}, nil)

	first, err := w.claimNextRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, high.ID, first.ID)
	assert.Equal(t, searchrun.StatusRunning, first.Status)
	require.NotNil(t, first.StartedAt)
	require.NotNil(t, first.LastHeartbeat)

	second, err := w.claimNextRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, mid.ID, second.ID)

	third, err := w.claimNextRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, low.ID, third.ID)

	_, err = w.claimNextRun(ctx)
	assert.ErrorIs(t, err, ErrNoRunsAvailable)
}

func TestClaimNextRunFIFOWithinPriority(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx := context.Background()

	first := submitRun(t, client, 1)
	time.Sleep(10 * time.Millisecond)
	second := submitRun(t, client, 1)

	w := NewWorker("w-0", "pod-test", client, testQueueConfig(), &stubExecutor{status: searchrun.StatusCompleted}, noopRegistry{}, nil)

	claimed, err := w.claimNextRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID)

	claimed, err = w.claimNextRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, claimed.ID)
}

type noopRegistry struct{}

func (noopRegistry) RegisterRun(int, context.CancelFunc) {}
func (noopRegistry) UnregisterRun(int)                   {}

func TestPoolProcessesRunToTerminalStatus(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := submitRun(t, client, 0)

	seen := make(chan int, 1)
	pool := NewWorkerPool("pod-test", client, testQueueConfig(), &stubExecutor{status: searchrun.StatusCompleted, seen: seen}, nil)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	select {
	case id := <-seen:
		assert.Equal(t, run.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("run was never picked up")
	}

	require.Eventually(t, func() bool {
		got, err := client.SearchRun.Get(context.Background(), run.ID)
		return err == nil && got.Status == searchrun.StatusCompleted
	}, 5*time.Second, 50*time.Millisecond)

	got, err := client.SearchRun.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.EndedAt)
	require.NotNil(t, got.PodID)
	assert.Equal(t, "pod-test", *got.PodID)
}

func TestPoolCancelRun(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	pool := NewWorkerPool("pod-test", client, testQueueConfig(), &stubExecutor{status: searchrun.StatusCompleted}, nil)

	cancelled := false
	pool.RegisterRun(42, func() { cancelled = true })
	assert.True(t, pool.CancelRun(42))
	assert.True(t, cancelled)

	pool.UnregisterRun(42)
	assert.False(t, pool.CancelRun(42))
}
