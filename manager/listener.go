package manager

import "github.com/srg/bluenode/internal/node"

// Listener receives discovery lifecycle events from a Manager. Both
// operations are mandatory; a type that cannot handle one of them is a
// programming error, not a runtime fallback.
//
// Callbacks are delivered asynchronously on the manager's worker pool, so a
// slow listener cannot stall the scan loop or other listeners. Delivery
// order across listeners for a single event is unspecified.
//
// StopDiscovery waits for in-flight callbacks to finish, so a callback must
// not call synchronously back into the manager's scan lifecycle
// (StartDiscovery, StopDiscovery, Close).
type Listener interface {
	// OnDiscoveryChange is called whenever a discovery process starts
	// (enabled=true) or stops (enabled=false).
	OnDiscoveryChange(m *Manager, enabled bool)

	// OnNodeDiscovered is called whenever a previously unseen node is added
	// to the manager's list. Repeat sightings update the node in place and
	// do not fire this callback.
	OnNodeDiscovered(m *Manager, n *node.Node)
}
