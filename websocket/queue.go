package websocket

import (
	"sync"

	"github.com/cesium-ml/baselayer/logger"
)

// callbackQueue runs callbacks one at a time on a single goroutine, in push
// order. push never blocks, so it is safe to call while holding locks that
// callbacks may also take.
type callbackQueue struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	logger  logger.Logger
}

func newCallbackQueue(logger logger.Logger) *callbackQueue {
	q := &callbackQueue{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go q.run()
	return q
}

func (q *callbackQueue) push(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	q.signal()
	return true
}

// close stops accepting callbacks. Callbacks already queued still run.
func (q *callbackQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *callbackQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *callbackQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.call(fn)
	}
}

func (q *callbackQueue) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Listener panic: %v", r)
		}
	}()
	fn()
}
