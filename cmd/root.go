/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autotest",
	Short: "Provision embedded boards and test them over their serial console",
	Long: `autotest flashes OS images onto a board's SD card, boots the board, logs in
over its serial console and runs a suite of verification commands against it.

The board is described by a TOML file (--config). Every key can be
overridden from the environment with the AUTOTEST_ prefix, for example
AUTOTEST_SERIAL_PASSWORD.

Example usage:
  autotest run --config board.toml
  autotest exec --config board.toml "uname -a"
  autotest console --config board.toml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Board configuration file (TOML)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Also log to stderr")
	rootCmd.PersistentFlags().StringP("device", "d", "", "Serial device, overrides serial.serial_file")
	rootCmd.PersistentFlags().IntP("baud", "b", 0, "Baud rate, overrides serial.baud_rate")
	rootCmd.PersistentFlags().String("log-dir", "", "Directory for run logs, overrides log_dir")
}
