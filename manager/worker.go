package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/bluenode/internal/device"
	"github.com/srg/bluenode/internal/groutine"
)

// scanSlice is how long the worker lets the driver run between stop checks,
// so an explicit stop is observed promptly.
const scanSlice = time.Second

// scanWorker runs the driver's asynchronous scan loop on a background
// goroutine. It cooperates with stop requests, self-stops at the configured
// timeout, and captures any driver failure instead of propagating it across
// the goroutine boundary; join surfaces the captured failure to the caller.
type scanWorker struct {
	driver  device.ScanDriver
	handler device.AdvHandler
	timeout time.Duration
	logger  *logrus.Logger

	stopRequested atomic.Bool
	timedOut      atomic.Bool
	done          chan struct{}

	mu  sync.Mutex
	err error
}

func newScanWorker(driver device.ScanDriver, handler device.AdvHandler, timeout time.Duration, logger *logrus.Logger) *scanWorker {
	return &scanWorker{
		driver:  driver,
		handler: handler,
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// start begins the asynchronous scan. The driver is started on the calling
// goroutine so an immediate privilege failure surfaces to the caller; only
// the slice loop runs in the background.
func (w *scanWorker) start() error {
	if err := w.driver.StartAsync(w.handler); err != nil {
		close(w.done)
		return err
	}
	groutine.Go(nil, "scan-worker", func(context.Context) {
		w.run()
	})
	return nil
}

func (w *scanWorker) run() {
	defer close(w.done)

	var elapsed time.Duration
	for {
		if err := w.driver.ProcessSlice(scanSlice); err != nil {
			w.setErr(err)
			return
		}
		if w.stopRequested.Load() {
			return
		}
		elapsed += scanSlice
		if elapsed >= w.timeout {
			w.timedOut.Store(true)
			if err := w.driver.StopAsync(); err != nil {
				w.setErr(err)
			}
			w.logger.WithField("timeout", w.timeout).Debug("scan worker reached timeout")
			return
		}
	}
}

// stop signals the loop, waits for it to acknowledge, then stops the driver.
// A driver failure during stop is captured for the subsequent join. The
// driver is stopped even when the loop died on a captured failure, so the
// next session can start cleanly; only the timeout path skips it, because
// the loop already stopped the driver itself there.
func (w *scanWorker) stop() {
	w.stopRequested.Store(true)
	<-w.done

	if w.timedOut.Load() {
		return
	}
	if err := w.driver.StopAsync(); err != nil {
		w.setErr(err)
	}
}

// join waits for the worker to terminate and returns the captured driver
// failure, if any.
func (w *scanWorker) join() error {
	<-w.done
	return w.getErr()
}

// timedOutDone reports whether the worker ended on its own timeout.
func (w *scanWorker) timedOutDone() bool {
	return w.timedOut.Load()
}

func (w *scanWorker) setErr(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *scanWorker) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
