package goble

import (
	"github.com/go-ble/ble"

	"github.com/srg/bluenode/internal/device"
)

// bleAdvertisement adapts ble.Advertisement to the device.Advertisement
// interface consumed by the discovery layer.
type bleAdvertisement struct {
	adv ble.Advertisement
}

// NewAdvertisement wraps a raw go-ble advertisement.
func NewAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &bleAdvertisement{adv: adv}
}

func (a *bleAdvertisement) LocalName() string {
	return a.adv.LocalName()
}

func (a *bleAdvertisement) ManufacturerData() []byte {
	return a.adv.ManufacturerData()
}

func (a *bleAdvertisement) Services() []string {
	svcs := a.adv.Services()
	uuids := make([]string, 0, len(svcs))
	for _, s := range svcs {
		uuids = append(uuids, s.String())
	}
	return uuids
}

func (a *bleAdvertisement) Connectable() bool {
	return a.adv.Connectable()
}

func (a *bleAdvertisement) TxPowerLevel() int {
	return a.adv.TxPowerLevel()
}

func (a *bleAdvertisement) RSSI() int {
	return a.adv.RSSI()
}

func (a *bleAdvertisement) Addr() string {
	return a.adv.Addr().String()
}
