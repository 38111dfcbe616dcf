package device

import "errors"

// Sentinel errors shared across the discovery stack. Driver adapters
// normalize their platform-specific failures onto these so callers can rely
// on errors.Is regardless of the underlying radio stack.
var (
	// ErrPermissionDenied indicates the radio refused to scan or connect
	// because the process lacks elevated privileges.
	ErrPermissionDenied = errors.New(`bluetooth scanning requires elevated privileges, please rerun with "sudo"`)

	// ErrBluetoothOff indicates the adapter is present but powered off.
	ErrBluetoothOff = errors.New("bluetooth is turned off")

	// ErrAlreadyExists indicates a duplicate construction: a second live
	// discovery manager, or an asynchronous scan started twice.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotScanning indicates an asynchronous stop with no scan running.
	ErrNotScanning = errors.New("no scan in progress")

	// ErrMalformedAdvertisement indicates an advertising payload that cannot
	// be turned into a node record. A single malformed peer never aborts a
	// scan; delegates swallow this error.
	ErrMalformedAdvertisement = errors.New("malformed advertising payload")
)
