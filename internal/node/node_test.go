package node_test

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bluenode/internal/device"
	"github.com/srg/bluenode/internal/node"
	"github.com/srg/bluenode/internal/testutils"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNew_FromAdvertisement(t *testing.T) {
	advertisement := testutils.NewAdvertisementBuilder().
		WithName("SensorTile").
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithRSSI(-62).
		WithDeviceIdentity(0x80, 0x00800000).
		Build()

	n, err := node.New(advertisement, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", n.Tag())
	assert.Equal(t, "SensorTile", n.Name())
	assert.Equal(t, -62, n.RSSI())
	assert.EqualValues(t, 0x80, n.DeviceID())
	assert.EqualValues(t, 0x00800000, n.FeatureMask())
	assert.Equal(t, node.StatusIdle, n.Status())
	assert.False(t, n.LastSeen().IsZero())
}

func TestNew_NameFallsBackToTag(t *testing.T) {
	advertisement := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		Build()

	n, err := node.New(advertisement, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", n.Name())
}

func TestNew_MalformedAdvertisement(t *testing.T) {
	tests := []struct {
		name string
		adv  device.Advertisement
	}{
		{
			name: "missing hardware address",
			adv:  testutils.NewAdvertisementBuilder().WithName("Ghost").Build(),
		},
		{
			name: "truncated identity payload",
			adv: testutils.NewAdvertisementBuilder().
				WithAddress("AA:BB:CC:DD:EE:FF").
				WithManufacturerData([]byte{0x01, 0x80}).
				Build(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := node.New(tt.adv, testLogger())
			assert.ErrorIs(t, err, device.ErrMalformedAdvertisement)
		})
	}
}

func TestNew_EmptyPayloadIsPlainPeripheral(t *testing.T) {
	advertisement := testutils.NewAdvertisementBuilder().
		WithName("Headphones").
		WithAddress("11:22:33:44:55:66").
		Build()

	n, err := node.New(advertisement, testLogger())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n.DeviceID())
	assert.EqualValues(t, 0, n.FeatureMask())
}

func TestUpdate_RefreshesLiveness(t *testing.T) {
	n, err := node.New(testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithRSSI(-80).
		Build(), testLogger())
	require.NoError(t, err)

	firstSeen := n.LastSeen()

	n.Update(testutils.NewAdvertisementBuilder().
		WithName("SensorTile").
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithRSSI(-45).
		WithDeviceIdentity(0x80, 0x1).
		Build())

	assert.Equal(t, -45, n.RSSI())
	assert.Equal(t, "SensorTile", n.Name(), "update MUST pick up a late name")
	assert.EqualValues(t, 0x80, n.DeviceID())
	assert.False(t, n.LastSeen().Before(firstSeen))
}

func TestUpdate_IgnoresMalformedPayload(t *testing.T) {
	n, err := node.New(testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithDeviceIdentity(0x80, 0x1).
		Build(), testLogger())
	require.NoError(t, err)

	n.Update(testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithManufacturerData([]byte{0xFF}).
		Build())

	assert.EqualValues(t, 0x80, n.DeviceID(), "a bad repeat payload MUST NOT clobber identity")
	assert.EqualValues(t, 0x1, n.FeatureMask())
}

func TestPayload_ReturnsCopy(t *testing.T) {
	n, err := node.New(testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithDeviceIdentity(0x80, 0x1).
		Build(), testLogger())
	require.NoError(t, err)

	p := n.Payload()
	require.NotEmpty(t, p)
	p[0] = 0xEE
	assert.NotEqual(t, byte(0xEE), n.Payload()[0])
}

type statusRecorder struct {
	mu          sync.Mutex
	transitions [][2]node.Status
}

func (r *statusRecorder) OnStatusChange(_ *node.Node, newStatus, oldStatus node.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]node.Status{oldStatus, newStatus})
}

func TestSetStatus_NotifiesListeners(t *testing.T) {
	n, err := node.New(testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		Build(), testLogger())
	require.NoError(t, err)

	rec := &statusRecorder{}
	n.AddListener(rec)
	n.AddListener(rec) // idempotent

	n.SetStatus(node.StatusConnecting)
	n.SetStatus(node.StatusConnecting) // no transition, no event
	n.SetStatus(node.StatusConnected)

	assert.True(t, n.IsConnected())
	assert.Equal(t, [][2]node.Status{
		{node.StatusIdle, node.StatusConnecting},
		{node.StatusConnecting, node.StatusConnected},
	}, rec.transitions)

	n.RemoveListener(rec)
	n.SetStatus(node.StatusDisconnected)
	assert.Len(t, rec.transitions, 2, "removed listener MUST receive nothing")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", node.StatusIdle.String())
	assert.Equal(t, "connecting", node.StatusConnecting.String())
	assert.Equal(t, "connected", node.StatusConnected.String())
	assert.Equal(t, "disconnected", node.StatusDisconnected.String())
}
