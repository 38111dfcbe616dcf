package goble

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/sirupsen/logrus"

	"github.com/srg/bluenode/internal/device"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
var DeviceFactory = func() (ble.Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}

// Driver drives a go-ble device through the device.ScanDriver contract.
// Synchronous scans block the caller for the configured timeout; the
// asynchronous variant runs the radio scan on a background goroutine under a
// cancellable context and captures the first failure for later observation
// through ProcessSlice or StopAsync.
type Driver struct {
	dev    ble.Device
	logger *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewDriver creates a scan driver backed by the platform BLE device.
func NewDriver(logger *logrus.Logger) (*Driver, error) {
	if logger == nil {
		logger = logrus.New()
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, err
	}

	return &Driver{dev: dev, logger: logger}, nil
}

// Scan blocks the caller for up to timeout, delivering every received
// advertisement to h. A timeout or cancellation is a normal scan end, not an
// error.
func (d *Driver) Scan(timeout time.Duration, h device.AdvHandler) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := d.dev.Scan(ctx, true, func(adv ble.Advertisement) {
		h(NewAdvertisement(adv))
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return NormalizeError(err)
	}
	return nil
}

// StartAsync begins background delivery of advertisements to h. Only one
// asynchronous scan may run at a time.
func (d *Driver) StartAsync(h device.AdvHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return device.ErrAlreadyExists
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.err = nil

	done := d.done
	go func() {
		defer close(done)
		err := d.dev.Scan(ctx, true, func(adv ble.Advertisement) {
			h(NewAdvertisement(adv))
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			d.setErr(NormalizeError(err))
		}
	}()

	return nil
}

// ProcessSlice observes one slice of scan activity: it returns early with the
// captured failure if the background scan died, otherwise after the slice
// elapses.
func (d *Driver) ProcessSlice(slice time.Duration) error {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()

	if done == nil {
		return device.ErrNotScanning
	}

	timer := time.NewTimer(slice)
	defer timer.Stop()

	select {
	case <-done:
		return d.getErr()
	case <-timer.C:
		return d.getErr()
	}
}

// StopAsync terminates the background scan and waits for it to wind down,
// returning any failure the scan captured.
func (d *Driver) StopAsync() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return device.ErrNotScanning
	}

	cancel()
	<-done

	d.logger.Debug("background BLE scan stopped")
	return d.getErr()
}

func (d *Driver) setErr(err error) {
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.mu.Unlock()
}

func (d *Driver) getErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
