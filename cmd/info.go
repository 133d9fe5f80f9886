/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-autotest"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info [port]",
	Short: "Show the board's serial port and the USB adapter behind it",
	Long: `Display details about a serial port. Without an argument the board's
configured serial_file is used.

For USB adapters this shows the vendor/product IDs, the serial number and
the bus/device pair that usb_reset acts on.

Examples:
  autotest info /dev/ttyUSB0
  autotest info --config board.toml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var portPath string
		if len(args) == 1 {
			portPath = args[0]
		} else {
			board, err := loadBoard(cmd)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			portPath = board.Serial.File
		}
		if portPath == "" {
			fmt.Fprintln(os.Stderr, "Error: no port given and serial_file is not configured")
			os.Exit(1)
		}

		info, err := serial.GetPortInfo(portPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting port info: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)
		fmt.Printf("  Type:        %s\n", getPortType(info.Name))

		if !info.IsUSB {
			return
		}
		fmt.Println("\nUSB Device Information:")
		fmt.Printf("  Vendor ID:  %s\n", info.VendorID)
		fmt.Printf("  Product ID: %s\n", info.ProductID)
		if info.SerialNumber != "" {
			fmt.Printf("  Serial:     %s\n", info.SerialNumber)
		}
		if info.BusNumber != "" {
			fmt.Printf("  Bus:        %s\n", info.BusNumber)
			fmt.Printf("  Device:     %s\n", info.DeviceNumber)
		}
		if serial.IsUSBResetAvailable() {
			fmt.Println("\n  usbreset is available; usb_reset recovery can be enabled")
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
