// Package serial is the transport underneath the board autotest engine: a
// small termios serial port for Linux plus the port discovery and USB reset
// helpers used to recover flaky adapters.
//
// # Basic Usage
//
// Open a serial port with default configuration (115200 8N1, 100ms reads):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("uname -a\n"))
//	buffer := make([]byte, 256)
//	n, err = port.Read(buffer) // n == 0, err == nil: read timeout elapsed
//
// Open flushes whatever the previous owner of the line left in the kernel
// buffers, and by default takes the line exclusively (TIOCEXCL).
//
// # Configuration Options
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(1500000),
//	    serial.WithReadTimeout(200*time.Millisecond),
//	)
//
// # Port Discovery
//
//	ports, err := serial.ListPorts()
//	for _, portPath := range ports {
//	    info, _ := serial.GetPortInfo(portPath)
//	    fmt.Printf("%s: %s (VID=%s PID=%s Serial=%s)\n",
//	        info.Path, info.Description, info.VendorID, info.ProductID, info.SerialNumber)
//	}
//
// # USB Device Management
//
//	err := serial.ResetUSBDevice(ctx, "/dev/ttyUSB0")
//	err = serial.ResetUSBDeviceBySerial(ctx, "FT123456")
//
// Requires usbreset utility from usbutils package and root/sudo permissions.
//
// # Error Handling
//
// Open maps errno values onto ErrDeviceNotFound, ErrPermissionDenied and
// ErrDeviceInUse; use errors.Is to test for them.
package serial
