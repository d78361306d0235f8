package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTasksRunInOrderOnOneGoroutine(t *testing.T) {
	l := New(context.Background(), nil)
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() { l.Stop(nil) })

	if err := l.Run(); !errors.Is(err, ErrStopped) {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("ran %d tasks", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran as %d", i, v)
		}
	}
}

func TestAwaitResumesOnLoop(t *testing.T) {
	l := New(context.Background(), nil)
	var result int
	l.Post(func() {
		Await(l, func(ctx context.Context) (int, error) {
			return 42, nil
		}, func(v int, err error) {
			if err != nil {
				t.Errorf("await: %v", err)
			}
			result = v
			l.Stop(nil)
		})
	})
	_ = l.Run()
	if result != 42 {
		t.Fatalf("result = %d", result)
	}
}

func TestAfterFiresAndCancels(t *testing.T) {
	l := New(context.Background(), nil)
	cancelled := false
	l.Post(func() {
		cancel := l.After(10*time.Millisecond, func() { cancelled = true })
		cancel()
		l.After(20*time.Millisecond, func() { l.Stop(errors.New("done")) })
	})
	err := l.Run()
	if err == nil || err.Error() != "done" {
		t.Fatalf("run: %v", err)
	}
	if cancelled {
		t.Fatalf("cancelled timer fired")
	}
}

func TestParentCancelStopsAwait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(ctx, nil)
	l.Post(func() {
		Await(l, func(ctx context.Context) (struct{}, error) {
			<-ctx.Done()
			return struct{}{}, ctx.Err()
		}, func(struct{}, error) {})
		cancel()
	})
	if err := l.Run(); !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
	if l.Post(func() {}) {
		t.Fatalf("post after stop should fail")
	}
}

func TestPanicStopsLoop(t *testing.T) {
	l := New(context.Background(), nil)
	l.Post(func() { panic("boom") })
	if err := l.Run(); err == nil {
		t.Fatalf("expected panic error")
	}
}
