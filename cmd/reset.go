/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-autotest"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset [port]",
	Short: "Reset the USB serial adapter of a board console",
	Long: `Perform a USB-level reset on a serial adapter. This is the same step the
console escalates to when usb_reset is enabled and reopening the line keeps
failing, and it can recover a hung adapter without unplugging it.

Without a port or --serial the board's configured serial_file is reset.

The device will re-enumerate after reset, which may cause the port path
to change (e.g., /dev/ttyUSB0 might become /dev/ttyUSB1). Use serial
numbers to reliably identify devices after reset.

Requirements:
- usbreset utility must be installed (from usbutils package)
- Root/sudo permissions required for USB operations

Examples:
  sudo autotest reset /dev/ttyUSB0
  sudo autotest reset --serial NC7ILXW1
  sudo autotest reset --config board.toml`,
	Args: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		if serialFlag != "" && len(args) > 0 {
			return errors.New("cannot specify both port path and --serial flag")
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if !serial.IsUSBResetAvailable() {
			fmt.Fprintln(os.Stderr, "Error: usbreset utility not available")
			fmt.Fprintln(os.Stderr, "Install with: sudo apt-get install usbutils")
			os.Exit(1)
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		serialFlag, _ := cmd.Flags().GetString("serial")
		var err error
		if serialFlag != "" {
			fmt.Printf("Resetting USB device with serial: %s\n", serialFlag)
			err = serial.ResetUSBDeviceBySerial(ctx, serialFlag)
		} else {
			portPath, perr := resetTarget(cmd, args)
			if perr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", perr)
				os.Exit(1)
			}
			fmt.Printf("Resetting USB device: %s\n", portPath)
			err = serial.ResetUSBDevice(ctx, portPath)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, serial.ErrUSBInfoNotAvailable) {
				fmt.Fprintln(os.Stderr, "This device does not appear to be a USB device")
			}
			os.Exit(1)
		}

		fmt.Println("USB device reset successfully")
		fmt.Println("Device will re-enumerate (port path may change)")
		fmt.Println("\nUse 'autotest list --table' to see updated device list")
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("serial", "s", "", "Reset device by serial number")
	resetCmd.Flags().Duration("timeout", 10*time.Second, "Give up on usbreset after this long")
}

func resetTarget(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	board, err := loadBoard(cmd)
	if err != nil {
		return "", err
	}
	if board.Serial.File == "" {
		return "", errors.New("requires a port path, --serial or a configured serial_file")
	}
	return board.Serial.File, nil
}
