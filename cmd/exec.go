/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/tui/styles"
)

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Log in and run a single command over the serial console",
	Long: `Open the board's serial console, log in if auto_login is set, run one
command and print its output with the echo and trailing prompt removed.

The exit status is 0 when the prompt came back in time and, if --expect
was given, one of the expected patterns appeared in the output.

Example usage:
  autotest exec --config board.toml "uname -a"
  autotest exec --config board.toml --expect riscv64 --timeout 5s "uname -m"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ok, err := execCommand(cmd, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().StringSliceP("expect", "e", nil, "Pattern expected in the output (repeatable)")
	execCmd.Flags().DurationP("timeout", "t", console.DefaultCommandTimeout, "How long to wait for the prompt")
}

func execCommand(cmd *cobra.Command, command string) (bool, error) {
	board, err := loadBoard(cmd)
	if err != nil {
		return false, err
	}
	log, err := openRunLog(cmd, board, "")
	if err != nil {
		return false, err
	}
	defer log.Close()

	sess := board.Session()
	con, err := console.New(sess, opener(sess), consoleOptions(board, log)...)
	if err != nil {
		return false, err
	}
	defer con.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	if err := con.Start(ctx); err != nil {
		return false, err
	}

	patterns, _ := cmd.Flags().GetStringSlice("expect")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	res, err := con.Run(ctx, console.Invocation{
		Command:  command,
		Timeout:  timeout,
		Patterns: patterns,
	})
	if err != nil {
		return false, err
	}

	fmt.Println(res.Output)

	ok := res.Status == console.StatusCompleted && (len(patterns) == 0 || res.Matched)
	summary := fmt.Sprintf("%s in %s", res.Status, res.Duration.Round(time.Millisecond))
	if res.Matched {
		summary += fmt.Sprintf(", matched %q", res.Pattern)
	} else if len(patterns) > 0 {
		summary += ", no pattern matched"
	}
	if ok {
		fmt.Fprintln(os.Stderr, styles.PassStyle.Render(summary))
	} else {
		fmt.Fprintln(os.Stderr, styles.FailStyle.Render(summary))
	}
	return ok, nil
}
