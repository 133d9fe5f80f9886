/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/allbin/go-serial-autotest/internal/provision"
	"github.com/allbin/go-serial-autotest/internal/shell"
)

// muxCmd represents the mux command
var muxCmd = &cobra.Command{
	Use:   "mux <ts|dut|tick|list|set-serial>",
	Short: "Drive the SD card multiplexer by hand",
	Long: `Run a single sd-mux-ctrl step against the board's multiplexer, as the
pipeline does between images.

  ts              connect the card to the test server
  dut             connect the card to the board
  tick            power-cycle the board for mux.tick_time
  list            list attached multiplexers
  set-serial <s>  program a new serial number into the attached mux

Example usage:
  autotest mux --config board.toml ts
  autotest mux --config board.toml tick
  autotest mux list`,
	ValidArgs: []string{"ts", "dut", "tick", "list", "set-serial"},
	Args:      cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMux(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(muxCmd)
}

func runMux(cmd *cobra.Command, args []string) error {
	board, err := loadBoard(cmd)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	log := consoleLogger(verbose)

	mux := &provision.SDMux{
		Serial:   board.Mux.DeviceSerial,
		Sudo:     board.Mux.Sudo,
		TickTime: board.Mux.TickTime,
		Runner:   shell.Exec{Log: log},
		Log:      log,
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch args[0] {
	case "ts":
		return mux.ConnectToTestServer(ctx)
	case "dut":
		return mux.ConnectToDUT(ctx)
	case "tick":
		return mux.PowerCycle(ctx)
	case "list":
		out, err := mux.List(ctx)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	case "set-serial":
		if len(args) != 2 {
			return fmt.Errorf("set-serial needs the new serial number")
		}
		return mux.SetSerial(ctx, args[1])
	default:
		return fmt.Errorf("unknown mux step %q", args[0])
	}
}
