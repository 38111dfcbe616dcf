// Package features holds the registry vocabulary for device features: the
// feature kinds a peripheral can expose and the built-in table routing
// single-bit advertising masks to those kinds.
package features

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies the typed data stream behind a GATT characteristic.
// Decoding the stream itself is out of scope here; kinds only route.
type Kind string

const (
	KindSwitch             Kind = "switch"
	KindDirectionOfArrival Kind = "direction_of_arrival"
	KindAudioADPCM         Kind = "audio_adpcm"
	KindMicLevel           Kind = "mic_level"
	KindProximity          Kind = "proximity"
	KindLuminosity         Kind = "luminosity"
	KindAcceleration       Kind = "acceleration"
	KindGyroscope          Kind = "gyroscope"
	KindMagnetometer       Kind = "magnetometer"
	KindPressure           Kind = "pressure"
	KindHumidity           Kind = "humidity"
	KindTemperature        Kind = "temperature"
	KindBattery            Kind = "battery"
	KindSecondTemperature  Kind = "second_temperature"
	KindSensorFusion       Kind = "sensor_fusion"
	KindActivity           Kind = "activity"
	KindPedometer          Kind = "pedometer"
)

// MaskTable maps single-bit feature masks to kinds, iterated in registration
// order (ascending bit position for the built-in table).
type MaskTable = orderedmap.OrderedMap[uint32, Kind]

// defaultMasks lists the built-in single-bit assignments, lowest bit first.
var defaultMasks = []struct {
	mask uint32
	kind Kind
}{
	{0x00000001, KindPedometer},
	{0x00000010, KindActivity},
	{0x00000080, KindSensorFusion},
	{0x00010000, KindSecondTemperature},
	{0x00020000, KindBattery},
	{0x00040000, KindTemperature},
	{0x00080000, KindHumidity},
	{0x00100000, KindPressure},
	{0x00200000, KindMagnetometer},
	{0x00400000, KindGyroscope},
	{0x00800000, KindAcceleration},
	{0x01000000, KindLuminosity},
	{0x02000000, KindProximity},
	{0x04000000, KindMicLevel},
	{0x08000000, KindAudioADPCM},
	{0x10000000, KindDirectionOfArrival},
	{0x20000000, KindSwitch},
}

// DefaultMaskTable builds a fresh copy of the built-in mask-to-kind table.
// Callers own the returned table and may mutate it freely.
func DefaultMaskTable() *MaskTable {
	t := orderedmap.New[uint32, Kind]()
	for _, e := range defaultMasks {
		t.Set(e.mask, e.kind)
	}
	return t
}

// Resolve lists the kinds a table routes for the set bits of mask, in table
// order. Unknown bits are skipped.
func Resolve(table *MaskTable, mask uint32) []Kind {
	if table == nil {
		return nil
	}
	var kinds []Kind
	for pair := table.Oldest(); pair != nil; pair = pair.Next() {
		if mask&pair.Key != 0 {
			kinds = append(kinds, pair.Value)
		}
	}
	return kinds
}
