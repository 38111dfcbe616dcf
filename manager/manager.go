// Package manager owns the Bluetooth Low Energy discovery process: it drives
// synchronous and asynchronous scans through a ScanDriver, deduplicates
// discovered nodes by hardware address, and fans discovery events out to
// registered listeners on a bounded worker pool.
package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/bluenode/internal/device"
	"github.com/srg/bluenode/internal/groutine"
	"github.com/srg/bluenode/internal/node"
)

const (
	// DefaultScanTimeout applies when a discovery call passes no timeout.
	DefaultScanTimeout = 10 * time.Second

	// notifyWorkers is the size of the listener notification pool.
	notifyWorkers = 5
	notifyQueue   = 64
)

var (
	instanceMu sync.Mutex
	instance   *Manager
)

// Manager coordinates BLE device discovery. Only one live Manager may exist
// per process; construct it at the composition root with New and pass it
// explicitly, or reach the shared one through Instance.
//
// The node list and the listener set are guarded by separate locks; listener
// callbacks always run outside both, on the notification pool.
type Manager struct {
	logger     *logrus.Logger
	driver     device.ScanDriver
	dispatcher *dispatcher
	features   *featureRegistry

	scanning atomic.Bool
	closed   atomic.Bool

	scanMu sync.Mutex
	worker *scanWorker

	nodeMu sync.Mutex
	nodes  []*node.Node

	listenerMu sync.Mutex
	listeners  []Listener
}

// New constructs the process-wide discovery manager around a scan driver.
// Constructing a second manager while one is live fails with
// ErrAlreadyExists; Close releases the slot.
func New(driver device.ScanDriver, logger *logrus.Logger) (*Manager, error) {
	if logger == nil {
		logger = logrus.New()
	}

	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return nil, device.ErrAlreadyExists
	}

	m := &Manager{
		logger:     logger,
		driver:     driver,
		dispatcher: newDispatcher(notifyWorkers, notifyQueue, logger),
		features:   newFeatureRegistry(),
	}
	instance = m
	return m, nil
}

// Instance returns the shared manager, nil when none has been constructed.
func Instance() *Manager {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// Close stops any active scan, shuts the notification pool down, and
// releases the process-wide manager slot. Idempotent.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if m.IsDiscovering() {
		_, err = m.StopDiscovery()
	}
	m.dispatcher.close()

	instanceMu.Lock()
	if instance == m {
		instance = nil
	}
	instanceMu.Unlock()

	return err
}

// Discover performs a synchronous scan, blocking the caller for up to
// timeout (DefaultScanTimeout when <= 0) while advertisement events flow
// into the node list. It returns (false, nil) without side effects when a
// scan is already running. The scanning state is always reset and a
// discovery-stop notification emitted, also when the driver fails.
func (m *Manager) Discover(showWarnings bool, timeout time.Duration) (bool, error) {
	if !m.scanning.CompareAndSwap(false, true) {
		return false, nil
	}
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}

	m.logger.WithField("timeout", timeout).Info("starting synchronous discovery")
	m.notifyDiscoveryChange(true)

	defer func() {
		m.scanning.Store(false)
		m.notifyDiscoveryChange(false)
		m.dispatcher.drain()
	}()

	d := newDelegate(m, showWarnings, m.logger)
	if err := m.driver.Scan(timeout, d.handle); err != nil {
		return false, err
	}
	return true, nil
}

// StartDiscovery begins an asynchronous scan and returns immediately. The
// spawned worker self-stops at the timeout (DefaultScanTimeout when <= 0) or
// on an explicit StopDiscovery. Returns (false, nil) when already scanning.
func (m *Manager) StartDiscovery(showWarnings bool, timeout time.Duration) (bool, error) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	if !m.scanning.CompareAndSwap(false, true) {
		return false, nil
	}
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}

	m.logger.WithField("timeout", timeout).Info("starting asynchronous discovery")
	m.notifyDiscoveryChange(true)

	d := newDelegate(m, showWarnings, m.logger)
	w := newScanWorker(m.driver, d.handle, timeout, m.logger)
	if err := w.start(); err != nil {
		// Pair the start notification with a stop so listeners never see a
		// dangling session.
		m.scanning.Store(false)
		m.notifyDiscoveryChange(false)
		return false, err
	}
	m.worker = w

	// A worker that reaches its own timeout moves the manager back to idle.
	groutine.Go(nil, "scan-monitor", func(context.Context) {
		if err := w.join(); err != nil {
			m.logger.WithError(err).Warn("scan worker terminated with failure")
		}
		if w.timedOutDone() {
			m.finishTimedOutScan(w)
		}
	})

	return true, nil
}

// StopDiscovery terminates the active asynchronous scan. It blocks until the
// worker has fully ceased emitting node events, propagates any driver
// failure the worker captured, and emits exactly one discovery-stop
// notification for the session. Returns (false, nil) when not scanning.
func (m *Manager) StopDiscovery() (bool, error) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	w := m.worker
	if w == nil || !m.scanning.Load() {
		return false, nil
	}

	w.stop()
	err := w.join()
	m.worker = nil
	m.scanning.Store(false)

	// The worker is gone, so nothing submits node events anymore; wait out
	// the ones in flight before reporting the stop.
	m.dispatcher.drain()
	m.notifyDiscoveryChange(false)
	m.dispatcher.drain()

	m.logger.Info("discovery stopped")
	return true, err
}

// finishTimedOutScan retires a worker that stopped on its own timeout. If an
// explicit StopDiscovery won the race, the worker is already detached and
// nothing happens here.
func (m *Manager) finishTimedOutScan(w *scanWorker) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	if m.worker != w {
		return
	}
	m.worker = nil
	m.scanning.Store(false)

	m.dispatcher.drain()
	m.notifyDiscoveryChange(false)

	m.logger.Info("discovery stopped at timeout")
}

// IsDiscovering reports whether a scan is active. Lock-free.
func (m *Manager) IsDiscovering() bool {
	return m.scanning.Load()
}

// ResetDiscovery stops any active scan, then removes every node that is not
// currently connected.
func (m *Manager) ResetDiscovery() error {
	var err error
	if m.IsDiscovering() {
		_, err = m.StopDiscovery()
	}
	m.RemoveNodes()
	return err
}

// AddNode appends a node to the discovered list and notifies listeners of
// it. A node whose tag is already present is rejected and the list left
// unchanged.
func (m *Manager) AddNode(n *node.Node) bool {
	if n == nil {
		return false
	}

	tag := n.Tag()
	m.nodeMu.Lock()
	for _, existing := range m.nodes {
		if existing.Tag() == tag {
			m.nodeMu.Unlock()
			return false
		}
	}
	m.nodes = append(m.nodes, n)
	m.nodeMu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"tag":  tag,
		"name": n.Name(),
		"rssi": n.RSSI(),
	}).Info("discovered new node")

	m.notifyNodeDiscovered(n)
	return true
}

// Nodes returns a snapshot of the discovered node list; concurrent mutation
// does not affect the returned slice.
func (m *Manager) Nodes() []*node.Node {
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()

	out := make([]*node.Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// NodeWithTag returns the node with the given hardware address, nil when
// absent.
func (m *Manager) NodeWithTag(tag string) *node.Node {
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()

	for _, n := range m.nodes {
		if n.Tag() == tag {
			return n
		}
	}
	return nil
}

// NodeWithName returns the first node with the given display name
// (case-sensitive), nil when absent. Names are not unique.
func (m *Manager) NodeWithName(name string) *node.Node {
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()

	for _, n := range m.nodes {
		if n.Name() == name {
			return n
		}
	}
	return nil
}

// RemoveNodes drops every node that is not currently connected.
func (m *Manager) RemoveNodes() {
	m.nodeMu.Lock()
	defer m.nodeMu.Unlock()

	kept := make([]*node.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		if n.IsConnected() {
			kept = append(kept, n)
		}
	}
	m.nodes = kept
}

// AddListener registers a discovery listener. Adding the same listener twice
// results in a single registration.
func (m *Manager) AddListener(l Listener) {
	if l == nil {
		return
	}
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	for _, existing := range m.listeners {
		if existing == l {
			return
		}
	}
	m.listeners = append(m.listeners, l)
}

// RemoveListener unregisters a discovery listener; removing one that was
// never added is a no-op.
func (m *Manager) RemoveListener(l Listener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Manager) snapshotListeners() []Listener {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

func (m *Manager) notifyDiscoveryChange(enabled bool) {
	for _, l := range m.snapshotListeners() {
		l := l
		m.dispatcher.submit(func() { l.OnDiscoveryChange(m, enabled) })
	}
}

func (m *Manager) notifyNodeDiscovered(n *node.Node) {
	for _, l := range m.snapshotListeners() {
		l := l
		m.dispatcher.submit(func() { l.OnNodeDiscovered(m, n) })
	}
}
