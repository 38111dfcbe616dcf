package device

import "time"

// Advertisement is a single broadcast packet received from a nearby BLE
// peripheral while a scan is running.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	Connectable() bool
	TxPowerLevel() int

	RSSI() int
	Addr() string
}

// AdvHandler consumes advertisement events delivered by a ScanDriver.
type AdvHandler func(adv Advertisement)

// ScanDriver is the platform scan primitive the discovery manager drives.
// Implementations wrap an OS-level radio stack; the manager never touches
// BLE wire semantics directly.
//
// Scan is the synchronous, time-boxed variant. StartAsync/ProcessSlice/
// StopAsync form the asynchronous variant: StartAsync begins background
// delivery of advertisements to the handler, ProcessSlice observes one slice
// of scan activity (returning any failure captured so far), and StopAsync
// terminates the background scan and joins it.
//
// Every operation may fail with ErrPermissionDenied when the radio requires
// elevated privileges.
type ScanDriver interface {
	Scan(timeout time.Duration, h AdvHandler) error
	StartAsync(h AdvHandler) error
	ProcessSlice(d time.Duration) error
	StopAsync() error
}
