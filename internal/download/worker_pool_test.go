package download

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWorkerPoolCreation(t *testing.T) {
	handler := func(ctx context.Context, task *Task) (*Acquisition, error) {
		return nil, nil
	}

	pool := NewWorkerPool(4, handler, nil)

	if pool.MaxWorkers() != 4 {
		t.Errorf("Expected 4 workers, got %d", pool.MaxWorkers())
	}
	if NewWorkerPool(0, handler, nil).MaxWorkers() != 3 {
		t.Error("Expected default worker count of 3")
	}
}

func TestWorkerPoolStartStop(t *testing.T) {
	handler := func(ctx context.Context, task *Task) (*Acquisition, error) {
		return nil, nil
	}

	pool := NewWorkerPool(2, handler, nil)
	ctx := context.Background()

	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	if err := pool.Start(ctx); err == nil {
		t.Error("Expected error when starting already started pool")
	}

	pool.Stop()

	if err := pool.Submit(&Task{ID: "late"}); err == nil {
		t.Error("Expected error when submitting to a stopped pool")
	}
}

func TestWorkerPoolTaskProcessing(t *testing.T) {
	handler := func(ctx context.Context, task *Task) (*Acquisition, error) {
		return &Acquisition{ItemID: "item-" + task.ID}, nil
	}

	pool := NewWorkerPool(2, handler, nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop()

	taskCount := 5
	for i := 0; i < taskCount; i++ {
		task := &Task{ID: string(rune('A' + i)), Link: "https://youtu.be/x"}
		if err := pool.Submit(task); err != nil {
			t.Errorf("Failed to submit task: %v", err)
		}
	}

	timeout := time.After(5 * time.Second)
	for resultCount := 0; resultCount < taskCount; {
		select {
		case result := <-pool.Results():
			if !result.Success() {
				t.Errorf("task %s failed: %v", result.TaskID, result.Error)
			}
			if result.Acquisition.ItemID != "item-"+result.TaskID {
				t.Errorf("ItemID = %s, want item-%s", result.Acquisition.ItemID, result.TaskID)
			}
			resultCount++
		case <-timeout:
			t.Fatalf("Timeout waiting for results, got %d/%d", resultCount, taskCount)
		}
	}
}

func TestWorkerPoolTaskCancellation(t *testing.T) {
	handler := func(ctx context.Context, task *Task) (*Acquisition, error) {
		select {
		case <-time.After(5 * time.Second):
			return &Acquisition{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	pool := NewWorkerPool(2, handler, nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop()

	if err := pool.Submit(&Task{ID: "test-task"}); err != nil {
		t.Fatalf("Failed to submit task: %v", err)
	}

	// Wait for the task to start
	deadline := time.Now().Add(2 * time.Second)
	for !pool.IsTaskActive("test-task") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := pool.CancelTask("test-task"); err != nil {
		t.Errorf("Failed to cancel task: %v", err)
	}

	select {
	case result := <-pool.Results():
		if result.Success() {
			t.Error("Expected task to fail after cancellation")
		}
		if !errors.Is(result.Error, context.Canceled) {
			t.Errorf("Expected context.Canceled error, got: %v", result.Error)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timeout waiting for cancelled task result")
	}
}

func TestWorkerPoolActiveCount(t *testing.T) {
	handler := func(ctx context.Context, task *Task) (*Acquisition, error) {
		time.Sleep(100 * time.Millisecond)
		return &Acquisition{}, nil
	}

	pool := NewWorkerPool(2, handler, nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop()

	for i := 0; i < 4; i++ {
		pool.Submit(&Task{ID: string(rune('A' + i))})
	}

	time.Sleep(50 * time.Millisecond)
	activeCount := pool.ActiveCount()

	if activeCount == 0 {
		t.Error("Expected some active tasks")
	}
	if activeCount > 2 {
		t.Errorf("Expected at most 2 active tasks (worker count), got %d", activeCount)
	}
}

func TestWorkerPoolWithPipeline(t *testing.T) {
	r := &fakeResolver{url: "https://media.example/stream"}
	fetcher := &scriptedFetcher{t: t, dir: t.TempDir(), payload: []byte("data")}
	pipeline, _ := newTestPipeline(t, r, fetcher)

	pool := NewWorkerPool(2, func(ctx context.Context, task *Task) (*Acquisition, error) {
		return pipeline.Acquire(ctx, task.Link, task.DisplayName)
	}, nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop()

	pool.Submit(&Task{ID: "good", Link: "https://youtu.be/abc", DisplayName: "Good"})
	pool.Submit(&Task{ID: "bad", Link: "https://example.com/abc", DisplayName: "Bad"})

	outcomes := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for len(outcomes) < 2 {
		select {
		case result := <-pool.Results():
			outcomes[result.TaskID] = result.Success()
		case <-timeout:
			t.Fatal("Timeout waiting for results")
		}
	}

	if !outcomes["good"] {
		t.Error("Expected good task to succeed")
	}
	if outcomes["bad"] {
		t.Error("Expected bad task to fail")
	}
}
