package main

import (
	"errors"

	"github.com/srg/bluenode/internal/device"
)

// FormatUserError translates known failures into actionable messages; anything
// unrecognized is reported verbatim.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, device.ErrPermissionDenied):
		return `scanning needs access to the Bluetooth adapter - rerun with "sudo" or grant the binary CAP_NET_ADMIN`
	case errors.Is(err, device.ErrBluetoothOff):
		return "the Bluetooth adapter is powered off - turn it on and try again"
	case errors.Is(err, device.ErrAlreadyExists):
		return "another discovery session is already running in this process"
	default:
		return err.Error()
	}
}
