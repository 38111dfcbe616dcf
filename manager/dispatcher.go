package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/bluenode/internal/groutine"
)

// dispatcher fans listener callbacks out onto a fixed pool of workers over a
// bounded queue. Each callback is an independent task; a panicking listener
// is isolated and logged without affecting other listeners or the scan.
type dispatcher struct {
	logger *logrus.Logger
	tasks  chan func()

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	pending sync.WaitGroup
}

func newDispatcher(workers, queue int, logger *logrus.Logger) *dispatcher {
	d := &dispatcher{
		logger: logger,
		tasks:  make(chan func(), queue),
	}
	for i := 0; i < workers; i++ {
		d.workers.Add(1)
		groutine.Go(nil, fmt.Sprintf("notify-worker-%d", i), func(context.Context) {
			d.work()
		})
	}
	return d
}

func (d *dispatcher) work() {
	defer d.workers.Done()
	for task := range d.tasks {
		d.invoke(task)
	}
}

func (d *dispatcher) invoke(task func()) {
	defer d.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithField("panic", r).Warn("listener callback panicked")
		}
	}()
	task()
}

// submit enqueues one listener callback. Blocks when the queue is full;
// silently drops after close.
func (d *dispatcher) submit(task func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.pending.Add(1)
	d.tasks <- task
}

// drain blocks until every task submitted so far has finished.
func (d *dispatcher) drain() {
	d.pending.Wait()
}

// close drains outstanding tasks and stops the workers. Idempotent.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.tasks)
	d.workers.Wait()
}
