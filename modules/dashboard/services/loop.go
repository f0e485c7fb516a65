package services

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var ErrLoopClosed = serrors.NewError("LOOP_CLOSED", "event loop is closed", "")

// Loop runs posted tasks one at a time, in order, on a single goroutine.
// Every task runs to completion before the next one starts.
type Loop struct {
	log *logrus.Entry

	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	started bool
}

func NewLoop(log *logrus.Logger) *Loop {
	return &Loop{
		log:     log.WithField("component", "loop"),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start runs the loop until ctx is done or Close is called.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()
	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.stopped)
	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.exec(task)
		}
		select {
		case <-l.wake:
		case <-l.done:
			return
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.queue = nil
			l.mu.Unlock()
			return
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("task panicked")
		}
	}()
	task()
}

// Post queues task without blocking. It reports false once the loop is closed.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Sync waits until every task posted before the call has run.
func (l *Loop) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if !l.Post(func() { close(reached) }) {
		return ErrLoopClosed
	}
	select {
	case <-reached:
		return nil
	case <-l.stopped:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !l.Post(func() { result <- fn() }) {
		return ErrLoopClosed
	}
	select {
	case err := <-result:
		return err
	case <-l.stopped:
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops queued tasks and waits for the running one to finish.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		if l.started {
			<-l.stopped
		}
		return
	}
	l.closed = true
	l.queue = nil
	started := l.started
	l.mu.Unlock()

	close(l.done)
	if started {
		<-l.stopped
	}
}
