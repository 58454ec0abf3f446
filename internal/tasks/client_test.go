package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lectern/internal/config"
)

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.FileExists(t, TasksDBPath(dbPath))
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "the records database is left alone")

	err = client.Close()
	assert.NoError(t, err)
}

func TestClientStartStop(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	defer client.Close()

	// Start client in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, client.Running())
	go client.Start(ctx)
	require.Eventually(t, client.Running, time.Second, 10*time.Millisecond)

	// Stop should complete successfully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	success := client.Stop(stopCtx)
	assert.True(t, success, "stop should succeed gracefully")
	assert.False(t, client.Running())

	// A second stop is a no-op
	assert.True(t, client.Stop(stopCtx))
}

// TestTask is a simple task for testing
type TestTask struct {
	Value string `json:"value"`
}

func (t TestTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "test_task",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestTaskEnqueue(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	defer client.Close()

	executed := make(chan string, 1)
	queue := backlite.NewQueue(func(ctx context.Context, task TestTask) error {
		executed <- task.Value
		return nil
	})
	client.Register(queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	ids, err := client.Enqueue(TestTask{Value: "hello"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	select {
	case val := <-executed:
		assert.Equal(t, "hello", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}

func TestNewConfig(t *testing.T) {
	t.Run("unset values use defaults", func(t *testing.T) {
		assert.Equal(t, DefaultConfig(), NewConfig(config.Tasks{}))
	})

	t.Run("configured values win", func(t *testing.T) {
		cfg := NewConfig(config.Tasks{Workers: 4, TaskTimeout: 20 * time.Minute, ReleaseAfter: 30 * time.Minute})
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, 20*time.Minute, cfg.TaskTimeout)
		assert.Equal(t, 30*time.Minute, cfg.ReleaseAfter)
		assert.Equal(t, 3, cfg.MaxRetries)
	})

	t.Run("release waits for the timeout", func(t *testing.T) {
		cfg := NewConfig(config.Tasks{TaskTimeout: time.Hour, ReleaseAfter: time.Minute})
		assert.Equal(t, time.Hour, cfg.ReleaseAfter)
	})
}

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "lectern-tasks.db"), TasksDBPath(filepath.Join("data", "lectern.db")))
	assert.Equal(t, filepath.Join("data", "records-tasks"), TasksDBPath(filepath.Join("data", "records")))
}

func TestClientEnqueue(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	ids, err := client.Enqueue(TestTask{Value: "a"}, TestTask{Value: "b"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	status, err := client.Status(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, backlite.TaskStatusPending, status)
}
