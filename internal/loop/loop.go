// Package loop provides a single-goroutine task executor. Every task posted
// to a Loop runs on the same goroutine, so state touched only from tasks
// needs no locking. Blocking work runs elsewhere through Await and resumes
// on the loop.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Run when Stop was called with a nil error.
var ErrStopped = errors.New("loop stopped")

// Loop runs posted tasks one at a time.
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan func()
	logger *zap.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.Mutex
	err      error
}

// New creates a loop bound to parent. Cancelling parent stops the loop.
func New(parent context.Context, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Loop{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan func(), 1024),
		logger: logger,
	}
}

// Context is cancelled when the loop stops.
func (l *Loop) Context() context.Context {
	return l.ctx
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.ctx.Done()
}

// Run executes tasks until the loop is stopped or its parent context ends,
// then waits for outstanding Await calls to return.
func (l *Loop) Run() error {
	defer l.wg.Wait()
	for {
		select {
		case <-l.ctx.Done():
			return l.Err()
		case task := <-l.tasks:
			l.runTask(task)
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panic", zap.Any("panic", r))
			l.Stop(fmt.Errorf("task panic: %v", r))
		}
	}()
	task()
}

// Post queues task. It returns false once the loop has stopped.
func (l *Loop) Post(task func()) bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
	}
	select {
	case l.tasks <- task:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// After posts task once d has elapsed. The returned function cancels the
// timer if it has not fired yet.
func (l *Loop) After(d time.Duration, task func()) (cancel func()) {
	if d <= 0 {
		l.Post(task)
		return func() {}
	}
	timer := time.AfterFunc(d, func() {
		l.Post(task)
	})
	return func() { timer.Stop() }
}

// Await runs fn off the loop and posts then with its result back onto the
// loop. then is dropped if the loop stopped in the meantime.
func Await[T any](l *Loop, fn func(ctx context.Context) (T, error), then func(T, error)) {
	select {
	case <-l.ctx.Done():
		return
	default:
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		value, err := fn(l.ctx)
		l.Post(func() { then(value, err) })
	}()
}

// Stop ends the loop. The first non-nil error wins and is returned by Run;
// a nil error stops with ErrStopped.
func (l *Loop) Stop(err error) {
	l.stopOnce.Do(func() {
		if err == nil {
			err = ErrStopped
		}
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		l.cancel()
	})
}

// Err returns the error the loop stopped with, or the parent context's error.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	return l.ctx.Err()
}
