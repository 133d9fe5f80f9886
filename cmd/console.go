/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/tui/models"
)

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive shell on the board over the serial console",
	Long: `Open the board's serial console in a terminal interface. The console
logs in on its own when auto_login is set, then every typed command runs
through the same command session the test suite uses, so each one ends at
the shell prompt or at the timeout.

The link recovers from unplugs and adapter resets while the view stays up;
the status bar shows the link and login state.

Keys: 'i' to type a command, enter to run it, esc to leave insert mode,
'?' for help and 'q' to quit.

Example usage:
  autotest console --config board.toml
  autotest console --config board.toml --device /dev/ttyUSB1 --timeout 30s`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConsoleTUI(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().DurationP("timeout", "t", console.DefaultCommandTimeout, "How long each command may take")
}

func runConsoleTUI(cmd *cobra.Command) error {
	board, err := loadBoard(cmd)
	if err != nil {
		return err
	}
	// stderr belongs to the terminal interface
	if err := cmd.Flags().Set("verbose", "false"); err != nil {
		return err
	}
	log, err := openRunLog(cmd, board, "")
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := models.NewLineSink(ctx.Done())
	sess := board.Session()
	opts := append(consoleOptions(board, log),
		console.WithMirror(io.Discard),
		console.WithLineHandler(sink.Handle),
	)
	con, err := console.New(sess, opener(sess), opts...)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	m := models.NewConsoleModel(ctx, con, sink, sess, timeout)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, runErr := p.Run()

	// unblock the reader before waiting for it
	cancel()
	if err := con.Stop(); err != nil {
		log.Debug().Err(err).Msg("error stopping console")
	}
	return runErr
}
