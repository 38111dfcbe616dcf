package manager

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cornelk/hashmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/bluenode/internal/features"
	"github.com/srg/bluenode/internal/node"
)

// ErrInvalidMask rejects a feature registration whose mask does not have
// exactly one bit set. A failed registration leaves prior state untouched.
var ErrInvalidMask = errors.New("feature mask must have a single bit set")

// featureRegistry maps device-type identifiers to mask-to-kind tables. It is
// instance state of a Manager, guarded by its own lock, so registrations
// never leak across manager instances.
type featureRegistry struct {
	mu       sync.Mutex
	decoders *hashmap.Map[uint8, *features.MaskTable]
}

func newFeatureRegistry() *featureRegistry {
	return &featureRegistry{
		decoders: hashmap.New[uint8, *features.MaskTable](),
	}
}

// add registers masks for a device-type identifier. Every mask is validated
// against the 32 single-bit positions before anything is written; the
// supplied set must be fully consumed or the call fails with ErrInvalidMask.
func (r *featureRegistry) add(deviceID uint8, masks map[uint32]features.Kind) error {
	if len(masks) == 0 {
		return nil
	}

	pending := make(map[uint32]struct{}, len(masks))
	for m := range masks {
		pending[m] = struct{}{}
	}
	probe := uint32(1)
	for i := 0; i < 32; i++ {
		delete(pending, probe)
		probe <<= 1
	}
	if len(pending) > 0 {
		bad := make([]uint32, 0, len(pending))
		for m := range pending {
			bad = append(bad, m)
		}
		sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })
		return fmt.Errorf("%w: offending masks %#x", ErrInvalidMask, bad)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	table, _ := r.decoders.GetOrInsert(deviceID, orderedmap.New[uint32, features.Kind]())
	probe = 1
	for i := 0; i < 32; i++ {
		if kind, ok := masks[probe]; ok {
			table.Set(probe, kind)
		}
		probe <<= 1
	}
	return nil
}

// get returns a copy of the table registered for deviceID, or a fresh copy
// of the built-in default table when the identifier is unregistered.
func (r *featureRegistry) get(deviceID uint8) *features.MaskTable {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.decoders.Get(deviceID)
	if !ok {
		return features.DefaultMaskTable()
	}

	cp := orderedmap.New[uint32, features.Kind]()
	for pair := table.Oldest(); pair != nil; pair = pair.Next() {
		cp.Set(pair.Key, pair.Value)
	}
	return cp
}

// AddFeaturesToNode registers a mask-to-kind table for a device-type
// identifier, or extends an already registered one. Each mask must have
// exactly one bit set; on ErrInvalidMask nothing is written.
func (m *Manager) AddFeaturesToNode(deviceID uint8, masks map[uint32]features.Kind) error {
	return m.features.add(deviceID, masks)
}

// NodeFeatures returns a copy of the mask-to-kind table for a device-type
// identifier. Unregistered identifiers fall back to the built-in defaults.
func (m *Manager) NodeFeatures(deviceID uint8) *features.MaskTable {
	return m.features.get(deviceID)
}

// NodeFeatureKinds resolves the feature kinds a discovered node advertises,
// routing its feature mask through the table for its device type.
func (m *Manager) NodeFeatureKinds(n *node.Node) []features.Kind {
	return features.Resolve(m.NodeFeatures(n.DeviceID()), n.FeatureMask())
}
