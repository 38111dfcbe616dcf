package manager_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bluenode/internal/features"
	"github.com/srg/bluenode/internal/node"
	"github.com/srg/bluenode/internal/testutils"
	"github.com/srg/bluenode/manager"
)

func newFeatureManager(t *testing.T) *manager.Manager {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	m, err := manager.New(testutils.NewFakeDriver(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func tableEntries(table *features.MaskTable) map[uint32]features.Kind {
	out := make(map[uint32]features.Kind)
	for pair := table.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

func TestAddFeaturesToNode_SingleBitMasks(t *testing.T) {
	m := newFeatureManager(t)

	err := m.AddFeaturesToNode(0x80, map[uint32]features.Kind{
		0x1: features.KindPedometer,
		0x2: features.KindActivity,
		0x4: features.KindSwitch,
	})
	require.NoError(t, err)

	got := tableEntries(m.NodeFeatures(0x80))
	assert.Equal(t, map[uint32]features.Kind{
		0x1: features.KindPedometer,
		0x2: features.KindActivity,
		0x4: features.KindSwitch,
	}, got, "registration MUST contain exactly the supplied entries")
}

func TestAddFeaturesToNode_RejectsMultiBitMask(t *testing.T) {
	m := newFeatureManager(t)

	require.NoError(t, m.AddFeaturesToNode(0x80, map[uint32]features.Kind{
		0x1: features.KindPedometer,
	}))

	tests := []struct {
		name string
		mask uint32
	}{
		{name: "two bits set", mask: 0x3},
		{name: "zero mask", mask: 0x0},
		{name: "high multi bit", mask: 0xC0000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.AddFeaturesToNode(0x80, map[uint32]features.Kind{
				tt.mask: features.KindSwitch,
			})
			assert.ErrorIs(t, err, manager.ErrInvalidMask)
		})
	}

	got := tableEntries(m.NodeFeatures(0x80))
	assert.Equal(t, map[uint32]features.Kind{
		0x1: features.KindPedometer,
	}, got, "rejected registration MUST NOT corrupt prior state")
}

func TestAddFeaturesToNode_MixedValidInvalidWritesNothing(t *testing.T) {
	m := newFeatureManager(t)

	err := m.AddFeaturesToNode(0x81, map[uint32]features.Kind{
		0x1: features.KindPedometer, // valid
		0x6: features.KindSwitch,    // two bits set
	})
	require.ErrorIs(t, err, manager.ErrInvalidMask)

	got := tableEntries(m.NodeFeatures(0x81))
	assert.Equal(t, tableEntries(features.DefaultMaskTable()), got,
		"a partially invalid registration MUST leave the identifier unregistered")
}

func TestNodeFeatures_UnregisteredFallsBackToDefaults(t *testing.T) {
	m := newFeatureManager(t)

	got := m.NodeFeatures(0x42)
	assert.Equal(t, tableEntries(features.DefaultMaskTable()), tableEntries(got))

	// The returned table is a copy; mutating it never leaks into the
	// registry.
	got.Set(0x1, features.KindSwitch)
	again := m.NodeFeatures(0x42)
	kind, _ := again.Get(0x1)
	assert.Equal(t, features.KindPedometer, kind)
}

func TestAddFeaturesToNode_ExtendsExistingRegistration(t *testing.T) {
	m := newFeatureManager(t)

	require.NoError(t, m.AddFeaturesToNode(0x80, map[uint32]features.Kind{
		0x1: features.KindPedometer,
	}))
	require.NoError(t, m.AddFeaturesToNode(0x80, map[uint32]features.Kind{
		0x2: features.KindActivity,
	}))

	got := tableEntries(m.NodeFeatures(0x80))
	assert.Len(t, got, 2)
	assert.Equal(t, features.KindPedometer, got[0x1])
	assert.Equal(t, features.KindActivity, got[0x2])
}

func TestNodeFeatureKinds_ResolvesAdvertisedMask(t *testing.T) {
	m := newFeatureManager(t)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	require.NoError(t, m.AddFeaturesToNode(0x80, map[uint32]features.Kind{
		0x1: features.KindPedometer,
		0x2: features.KindActivity,
		0x4: features.KindSwitch,
	}))

	advertisement := testutils.NewAdvertisementBuilder().
		WithName("SensorTile").
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithDeviceIdentity(0x80, 0x5). // pedometer + switch
		Build()
	n, err := node.New(advertisement, logger)
	require.NoError(t, err)

	kinds := m.NodeFeatureKinds(n)
	assert.Equal(t, []features.Kind{features.KindPedometer, features.KindSwitch}, kinds)
}
