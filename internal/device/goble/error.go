package goble

import (
	"fmt"
	"strings"

	"github.com/srg/bluenode/internal/device"
)

// NormalizeError maps known go-ble error strings to the shared sentinel
// errors. It ensures consistent handling even if the upstream library changes
// messages slightly. Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "operation not permitted"):
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	case containsIgnoreCase(msg, "permission denied"):
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	case containsIgnoreCase(msg, "requires root"):
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "invalid state"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
