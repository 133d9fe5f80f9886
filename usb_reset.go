package serial

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"go.bug.st/serial/enumerator"
)

// reenumerateDelay is how long a reset device usually takes to come back
var reenumerateDelay = 2 * time.Second

// ResetUSBDevice performs a USB-level reset of the adapter behind portPath.
// This can recover hardware that is in a hung/unresponsive state.
//
// Requirements:
// - usbreset utility must be installed (from usbutils package)
// - Requires appropriate permissions (typically root/sudo)
//
// Returns:
// - nil if reset successful
// - ErrUSBResetNotAvailable if usbreset utility not found
// - ErrUSBInfoNotAvailable if device is not USB or metadata unavailable
// - error if reset fails
func ResetUSBDevice(ctx context.Context, portPath string) error {
	info, err := GetPortInfo(portPath)
	if err != nil {
		return fmt.Errorf("failed to get port info: %w", err)
	}

	if info.BusNumber == "" || info.DeviceNumber == "" {
		return ErrUSBInfoNotAvailable
	}

	if !IsUSBResetAvailable() {
		return ErrUSBResetNotAvailable
	}

	usbPath, err := formatUSBPath(info.BusNumber, info.DeviceNumber)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "usbreset", usbPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("usbreset failed: %w (output: %s)", err, string(output))
	}

	select {
	case <-time.After(reenumerateDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResetUSBDeviceBySerial resets a USB device by its serial number.
// Useful when device paths change after reboot or when multiple devices are connected.
func ResetUSBDeviceBySerial(ctx context.Context, serialNumber string) error {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return err
	}

	for _, d := range details {
		if d.IsUSB && d.SerialNumber == serialNumber {
			return ResetUSBDevice(ctx, d.Name)
		}
	}

	return fmt.Errorf("device with serial %s not found", serialNumber)
}

// IsUSBResetAvailable checks if usbreset utility is available in PATH
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}

// formatUSBPath builds the BBB/DDD argument usbreset expects
func formatUSBPath(bus, device string) (string, error) {
	b, err := strconv.Atoi(bus)
	if err != nil {
		return "", fmt.Errorf("%w: bus %q", ErrUSBInfoNotAvailable, bus)
	}
	d, err := strconv.Atoi(device)
	if err != nil {
		return "", fmt.Errorf("%w: device %q", ErrUSBInfoNotAvailable, device)
	}
	return fmt.Sprintf("%03d/%03d", b, d), nil
}
