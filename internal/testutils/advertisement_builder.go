// Package testutils provides plain test doubles for the discovery stack.
package testutils

import (
	"encoding/binary"

	"github.com/srg/bluenode/internal/device"
)

// FakeAdvertisement is a plain device.Advertisement implementation for
// tests.
type FakeAdvertisement struct {
	Name        string
	Address     string
	Rssi        int
	ServiceList []string
	ManufData   []byte
	IsConn      bool
	TxPower     int
}

func (a *FakeAdvertisement) LocalName() string        { return a.Name }
func (a *FakeAdvertisement) ManufacturerData() []byte { return a.ManufData }
func (a *FakeAdvertisement) Services() []string       { return a.ServiceList }
func (a *FakeAdvertisement) Connectable() bool        { return a.IsConn }
func (a *FakeAdvertisement) TxPowerLevel() int        { return a.TxPower }
func (a *FakeAdvertisement) RSSI() int                { return a.Rssi }
func (a *FakeAdvertisement) Addr() string             { return a.Address }

// AdvertisementBuilder builds FakeAdvertisement values with a fluent API.
type AdvertisementBuilder struct {
	adv FakeAdvertisement
}

// NewAdvertisementBuilder starts a builder with sensible defaults: a
// connectable advertiser at -50 dBm with TX power unavailable (127 per the
// BLE spec).
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{
		adv: FakeAdvertisement{
			Rssi:    -50,
			IsConn:  true,
			TxPower: 127,
		},
	}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceList = append(b.adv.ServiceList, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.ManufData = data
	return b
}

// WithDeviceIdentity encodes a well-formed identity payload: protocol
// version 1, the device-type identifier, and the feature mask.
func (b *AdvertisementBuilder) WithDeviceIdentity(deviceID uint8, featureMask uint32) *AdvertisementBuilder {
	data := make([]byte, 6)
	data[0] = 0x01
	data[1] = deviceID
	binary.BigEndian.PutUint32(data[2:6], featureMask)
	b.adv.ManufData = data
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConn = c
	return b
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.adv.TxPower = power
	return b
}

// Build returns the assembled advertisement.
func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	return &adv
}
