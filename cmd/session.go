/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-autotest"
	"github.com/allbin/go-serial-autotest/internal/config"
	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/runlog"
)

// portPollInterval bounds each read so the reader never holds the line
// for longer than this.
const portPollInterval = 100 * time.Millisecond

// loadBoard reads --config with the persistent flag overrides applied.
func loadBoard(cmd *cobra.Command) (*config.Board, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadFlags(path, cmd.Flags())
}

// openRunLog starts the per-run log for board. An empty runID gets a
// fresh one.
func openRunLog(cmd *cobra.Command, board *config.Board, runID string) (*runlog.Log, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if runID == "" {
		runID = uuid.NewString()
	}
	return runlog.Open(runlog.Options{
		Dir:     board.LogDir,
		RunID:   runID,
		Start:   time.Now(),
		Verbose: verbose,
	})
}

// opener opens the board's serial line in raw 8-N-1.
func opener(sess console.Session) console.Opener {
	return func() (console.Port, error) {
		return serial.Open(sess.SerialFile,
			serial.WithBaudRate(sess.BaudRate),
			serial.WithReadTimeout(portPollInterval),
		)
	}
}

// consoleOptions are the options every command builds its console with.
func consoleOptions(board *config.Board, log *runlog.Log) []console.Option {
	opts := []console.Option{console.WithLogger(log.Logger)}
	if board.Serial.USBReset {
		device := board.Serial.File
		opts = append(opts, console.WithUSBReset(func(ctx context.Context) error {
			return serial.ResetUSBDevice(ctx, device)
		}, console.DefaultResetAfter))
	}
	return opts
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// consoleLogger logs to stderr for one-shot commands that keep no run log.
func consoleLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
}
