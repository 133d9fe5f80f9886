package serial

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// sysfsRoot is swapped out by tests
var sysfsRoot = "/sys"

// Virtual terminals and pseudo-terminals are never DUT consoles
var excludePattern = regexp.MustCompile(`^(tty\d+|console|ptmx|pty.*)$`)

// PortInfo describes a serial port and, for USB adapters, the device behind it
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	IsUSB        bool
	VendorID     string
	ProductID    string
	SerialNumber string
	BusNumber    string
	DeviceNumber string
}

// ListPorts returns the sorted paths of the serial ports on the system
func ListPorts() ([]string, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, d := range details {
		if excludePattern.MatchString(filepath.Base(d.Name)) {
			continue
		}
		if isCharacterDevice(d.Name) {
			ports = append(ports, d.Name)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}

	if details, err := enumerator.GetDetailedPortsList(); err == nil {
		for _, d := range details {
			if d.Name != portPath || !d.IsUSB {
				continue
			}
			info.IsUSB = true
			info.VendorID = d.VID
			info.ProductID = d.PID
			info.SerialNumber = d.SerialNumber
		}
	}

	if info.IsUSB || strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(info)
	}

	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo fills the bus and device numbers usbreset needs from sysfs.
// The tty's device link points at a USB interface; busnum and devnum live
// on the USB device one or two levels above it.
func enrichUSBInfo(info *PortInfo) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(sysfsRoot, "class", "tty", info.Name, "device"))
	if err != nil {
		return
	}

	dir := resolved
	for i := 0; i < 4 && dir != "/" && dir != "."; i++ {
		if bus := readSysfsFile(filepath.Join(dir, "busnum")); bus != "" {
			info.IsUSB = true
			info.BusNumber = bus
			info.DeviceNumber = readSysfsFile(filepath.Join(dir, "devnum"))
			if info.VendorID == "" {
				info.VendorID = readSysfsFile(filepath.Join(dir, "idVendor"))
				info.ProductID = readSysfsFile(filepath.Join(dir, "idProduct"))
			}
			if info.SerialNumber == "" {
				info.SerialNumber = readSysfsFile(filepath.Join(dir, "serial"))
			}
			return
		}
		dir = filepath.Dir(dir)
	}
}

// readSysfsFile returns the trimmed content of a sysfs attribute, or "" if unreadable
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
