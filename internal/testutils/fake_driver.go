package testutils

import (
	"sync"
	"time"

	"github.com/srg/bluenode/internal/device"
)

// FakeDriver is a scripted device.ScanDriver. Synchronous Scan delivers the
// whole queue at once; the asynchronous variant delivers one advertisement
// per ProcessSlice so tests can interleave stop requests with the scan loop.
type FakeDriver struct {
	// SliceDuration replaces the real radio slice; keep it short in tests.
	SliceDuration time.Duration

	// Scripted failures.
	ScanErr  error
	StartErr error
	SliceErr error
	StopErr  error

	mu         sync.Mutex
	handler    device.AdvHandler
	queue      []device.Advertisement
	running    bool
	startCount int
	stopCount  int
}

func NewFakeDriver(advs ...device.Advertisement) *FakeDriver {
	return &FakeDriver{
		SliceDuration: 5 * time.Millisecond,
		queue:         advs,
	}
}

// Enqueue appends advertisements for later slices.
func (f *FakeDriver) Enqueue(advs ...device.Advertisement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, advs...)
}

func (f *FakeDriver) Scan(_ time.Duration, h device.AdvHandler) error {
	if f.ScanErr != nil {
		return f.ScanErr
	}

	f.mu.Lock()
	queued := f.queue
	f.queue = nil
	f.mu.Unlock()

	for _, adv := range queued {
		h(adv)
	}
	return nil
}

func (f *FakeDriver) StartAsync(h device.AdvHandler) error {
	if f.StartErr != nil {
		return f.StartErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return device.ErrAlreadyExists
	}
	f.handler = h
	f.running = true
	f.startCount++
	return nil
}

func (f *FakeDriver) ProcessSlice(_ time.Duration) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return device.ErrNotScanning
	}
	h := f.handler
	var next device.Advertisement
	if len(f.queue) > 0 {
		next = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.mu.Unlock()

	time.Sleep(f.SliceDuration)

	if f.SliceErr != nil {
		return f.SliceErr
	}
	if next != nil {
		h(next)
	}
	return nil
}

func (f *FakeDriver) StopAsync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return device.ErrNotScanning
	}
	f.running = false
	f.stopCount++
	return f.StopErr
}

// Running reports whether an asynchronous scan is active.
func (f *FakeDriver) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Starts returns how many asynchronous scans were started.
func (f *FakeDriver) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCount
}

// Stops returns how many asynchronous scans were stopped.
func (f *FakeDriver) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCount
}
