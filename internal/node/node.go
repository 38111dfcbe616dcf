package node

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/bluenode/internal/device"
)

// Status is the connection state of a discovered node.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Listener is notified whenever a node changes its connection status.
// Implementations must provide OnStatusChange; there is no default no-op.
type Listener interface {
	OnStatusChange(n *Node, newStatus, oldStatus Status)
}

// advertising payload layout: protocol version, device type identifier, and
// a 32-bit feature mask, carried in the manufacturer-specific data.
const payloadMinLen = 6

// Node is the identity and connection state of one discovered BLE
// peripheral. A node is owned by the discovery manager once added to its
// list; repeat sightings mutate it in place.
type Node struct {
	logger *logrus.Logger

	mu        sync.RWMutex
	tag       string
	name      string
	rssi      int
	lastSeen  time.Time
	payload   []byte
	deviceID  uint8
	mask      uint32
	status    Status
	listeners []Listener
}

// New builds a node record from an advertisement event. It fails with
// ErrMalformedAdvertisement when the advertiser carries no hardware address
// or a manufacturer payload too short to hold the device identity.
func New(adv device.Advertisement, logger *logrus.Logger) (*Node, error) {
	if logger == nil {
		logger = logrus.New()
	}

	tag := adv.Addr()
	if tag == "" {
		return nil, fmt.Errorf("%w: advertiser has no hardware address", device.ErrMalformedAdvertisement)
	}

	n := &Node{
		logger:   logger,
		tag:      tag,
		name:     adv.LocalName(),
		rssi:     adv.RSSI(),
		lastSeen: time.Now(),
		status:   StatusIdle,
	}

	if err := n.parsePayload(adv.ManufacturerData()); err != nil {
		return nil, err
	}
	if n.name == "" {
		n.name = tag
	}

	return n, nil
}

// parsePayload extracts device identity from the manufacturer data. An empty
// payload is a plain peripheral (device id 0); a present but truncated one is
// malformed. Caller holds the lock or owns the node exclusively.
func (n *Node) parsePayload(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) < payloadMinLen {
		return fmt.Errorf("%w: manufacturer data is %d bytes, want at least %d",
			device.ErrMalformedAdvertisement, len(data), payloadMinLen)
	}

	n.payload = append(n.payload[:0], data...)
	n.deviceID = data[1]
	n.mask = binary.BigEndian.Uint32(data[2:6])
	return nil
}

// Update refreshes liveness and advertising data from a repeat sighting.
// A malformed payload on an already known node is ignored.
func (n *Node) Update(adv device.Advertisement) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.rssi = adv.RSSI()
	n.lastSeen = time.Now()
	if name := adv.LocalName(); name != "" {
		n.name = name
	}
	if err := n.parsePayload(adv.ManufacturerData()); err != nil {
		n.logger.WithError(err).WithField("tag", n.tag).Debug("ignoring malformed payload on update")
	}
}

// Tag returns the unique hardware address identifying the node.
func (n *Node) Tag() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tag
}

// Name returns the display name, falling back to the tag when the peripheral
// never advertised one.
func (n *Node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

func (n *Node) RSSI() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rssi
}

func (n *Node) LastSeen() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastSeen
}

// Payload returns a copy of the raw advertising payload.
func (n *Node) Payload() []byte {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]byte, len(n.payload))
	copy(out, n.payload)
	return out
}

// DeviceID returns the device-type identifier parsed from the payload,
// zero for plain peripherals.
func (n *Node) DeviceID() uint8 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.deviceID
}

// FeatureMask returns the advertised feature bit mask.
func (n *Node) FeatureMask() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mask
}

func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// IsConnected reports whether the node currently holds a connection.
// Connected nodes survive RemoveNodes and ResetDiscovery.
func (n *Node) IsConnected() bool {
	return n.Status() == StatusConnected
}

// SetStatus transitions the connection status and notifies status listeners.
// Listeners run on the calling goroutine, outside the node lock.
func (n *Node) SetStatus(s Status) {
	n.mu.Lock()
	old := n.status
	if old == s {
		n.mu.Unlock()
		return
	}
	n.status = s
	listeners := make([]Listener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	n.logger.WithFields(logrus.Fields{
		"tag":  n.Tag(),
		"from": old.String(),
		"to":   s.String(),
	}).Debug("node status changed")

	for _, l := range listeners {
		l.OnStatusChange(n, s, old)
	}
}

// AddListener registers a status listener. Adding the same listener twice is
// a no-op.
func (n *Node) AddListener(l Listener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.listeners {
		if existing == l {
			return
		}
	}
	n.listeners = append(n.listeners, l)
}

// RemoveListener unregisters a status listener. Removing an unknown listener
// is a no-op.
func (n *Node) RemoveListener(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.listeners {
		if existing == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}
