/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-autotest"
	"github.com/allbin/go-serial-autotest/internal/tui/styles"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports a board console could be attached to",
	Long: `List the serial ports on this host.

USB adapters are shown with their vendor and product IDs and serial
number, which is what the usb_reset recovery and 'autotest reset --serial'
use to find the adapter again after it re-enumerates.

Virtual terminals and pseudo-terminals are excluded from the listing.

Example usage:
  autotest list
  autotest list --table --filter usb`,
	Run: func(cmd *cobra.Command, args []string) {
		paths, err := serial.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
			os.Exit(1)
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		ports := filterPorts(portInfos(paths), filterType)
		if len(ports) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return
		}

		if tableFormat {
			fmt.Printf("Found %d serial port(s):\n", len(ports))
			fmt.Println(portTable(ports))
			return
		}
		for _, p := range ports {
			fmt.Println(p.Path)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// portInfos resolves every path, keeping a bare entry for ports whose
// details cannot be read.
func portInfos(paths []string) []serial.PortInfo {
	infos := make([]serial.PortInfo, 0, len(paths))
	for _, path := range paths {
		info, err := serial.GetPortInfo(path)
		if err != nil {
			name := path[strings.LastIndex(path, "/")+1:]
			infos = append(infos, serial.PortInfo{Name: name, Path: path, Description: "Error: " + err.Error()})
			continue
		}
		infos = append(infos, *info)
	}
	return infos
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []serial.PortInfo, filterType string) []serial.PortInfo {
	filterType = strings.ToLower(filterType)
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []serial.PortInfo
	for _, p := range ports {
		name := strings.ToLower(p.Name)
		var keep bool
		switch filterType {
		case "usb":
			keep = p.IsUSB || strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm")
		case "standard":
			keep = strings.HasPrefix(name, "ttys")
		case "arm":
			keep = strings.HasPrefix(name, "ttyama")
		}
		if keep {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

const (
	colPort   = "port"
	colType   = "type"
	colUSB    = "usb"
	colSerial = "serial"
	colDesc   = "desc"
)

func portTable(ports []serial.PortInfo) string {
	rows := make([]table.Row, 0, len(ports))
	for _, p := range ports {
		usb := ""
		if p.VendorID != "" || p.ProductID != "" {
			usb = p.VendorID + ":" + p.ProductID
		}
		rows = append(rows, table.NewRow(table.RowData{
			colPort:   p.Path,
			colType:   getPortType(p.Name),
			colUSB:    usb,
			colSerial: p.SerialNumber,
			colDesc:   p.Description,
		}))
	}

	return table.New([]table.Column{
		table.NewColumn(colPort, "Port", 16),
		table.NewColumn(colType, "Type", 16),
		table.NewColumn(colUSB, "VID:PID", 11),
		table.NewColumn(colSerial, "Serial", 20),
		table.NewColumn(colDesc, "Description", 32),
	}).
		WithRows(rows).
		HeaderStyle(styles.TableHeaderStyle).
		WithBaseStyle(styles.TableBaseStyle).
		BorderRounded().
		View()
}

// getPortType returns a more specific type classification for the port
func getPortType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}
