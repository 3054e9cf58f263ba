package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_PreservesOrder(t *testing.T) {
	out, err := Run(context.Background(), 4, 20, func(ctx context.Context, i int) (int, error) {
		// later indices finish first
		time.Sleep(time.Duration(20-i) * time.Millisecond)
		return i * i, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var running, peak int32
	_, err := Run(context.Background(), 3, 30, func(ctx context.Context, i int) (struct{}, error) {
		now := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRun_FirstErrorAborts(t *testing.T) {
	boom := errors.New("backend down")
	var started int32
	out, err := Run(context.Background(), 2, 50, func(ctx context.Context, i int) (int, error) {
		atomic.AddInt32(&started, 1)
		if i == 3 {
			return 0, boom
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(2 * time.Millisecond):
			return i, nil
		}
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the first task error, got %v", err)
	}
	if out != nil {
		t.Error("no partial result expected on failure")
	}
	if atomic.LoadInt32(&started) == 50 {
		t.Error("remaining tasks should have been skipped after the failure")
	}
}

func TestRun_Empty(t *testing.T) {
	out, err := Run(context.Background(), 4, 0, func(ctx context.Context, i int) (int, error) {
		t.Fatal("task must not run")
		return 0, nil
	})
	if err != nil || len(out) != 0 {
		t.Errorf("Run(0) = %v, %v", out, err)
	}
}
