/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/allbin/go-serial-autotest/internal/config"
	"github.com/allbin/go-serial-autotest/internal/pipeline"
	"github.com/allbin/go-serial-autotest/internal/provision"
	"github.com/allbin/go-serial-autotest/internal/report"
	"github.com/allbin/go-serial-autotest/internal/shell"
	"github.com/allbin/go-serial-autotest/internal/suite"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision, boot and test the board for every configured image",
	Long: `Run the full pipeline once per OS image listed in the board file:

  1. switch the SD card to the test server while the image downloads
  2. flash the image with dd
  3. switch the card to the board and power-cycle it
  4. log in over the serial console
  5. run the test suite and judge every case

A report table is printed per image. With --report the reports are also
written as JSON. The command exits non-zero if any image failed.

Example usage:
  autotest run --config board.toml
  autotest run --config board.toml --image Bianbu --report out/report.json
  autotest run --config board.toml --skip-provision`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ok, err := runPipeline(cmd)
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
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("skip-provision", false, "Test the board as it is, without flashing or power cycling")
	runCmd.Flags().StringSlice("image", nil, "Only run these images (repeatable)")
	runCmd.Flags().String("report", "", "Also write the reports as JSON to this file")
	runCmd.Flags().String("suite", "", "Test suite file, overrides suite")
}

func runPipeline(cmd *cobra.Command) (bool, error) {
	board, err := loadBoard(cmd)
	if err != nil {
		return false, err
	}
	if board.Suite == "" {
		return false, errors.New("no test suite configured (suite or --suite)")
	}
	cases, err := suite.Load(board.Suite)
	if err != nil {
		return false, err
	}

	skip, _ := cmd.Flags().GetBool("skip-provision")
	only, _ := cmd.Flags().GetStringSlice("image")
	images, err := selectImages(board, only, skip)
	if err != nil {
		return false, err
	}

	runID := uuid.NewString()
	log, err := openRunLog(cmd, board, runID)
	if err != nil {
		return false, err
	}
	defer log.Close()
	fmt.Fprintf(os.Stderr, "Run %s, logging to %s\n", runID, log.Path)

	runner := shell.Exec{Log: log.With().Str("component", "shell").Logger()}
	p := &pipeline.Pipeline{
		RunID: runID,
		Mux: &provision.SDMux{
			Serial:   board.Mux.DeviceSerial,
			Sudo:     board.Mux.Sudo,
			TickTime: board.Mux.TickTime,
			Runner:   runner,
			Log:      log.With().Str("component", "sdmux").Logger(),
		},
		Store: &provision.ImageManager{
			Dir:      board.Flash.ImageDir,
			Device:   board.Flash.Device,
			DDParams: board.Flash.DDParams,
			Sudo:     board.Flash.Sudo,
			Runner:   runner,
			Log:      log.With().Str("component", "image").Logger(),
		},
		NewConsole:    pipeline.ConsoleFactory(board.Session(), opener(board.Session()), consoleOptions(board, log)...),
		Cases:         cases,
		JudgeDir:      board.JudgeDir,
		Runner:        runner,
		SkipProvision: skip,
		Log:           log.Logger,
	}

	ctx, cancel := signalContext()
	defer cancel()
	reports := p.RunAll(ctx, images)

	if err := report.Render(os.Stdout, reports, terminalWidth()); err != nil {
		return false, err
	}
	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := report.WriteFile(path, reports); err != nil {
			return false, fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
	}

	ok := len(reports) == len(images)
	for _, rep := range reports {
		ok = ok && rep.OK()
	}
	return ok, nil
}

// selectImages picks the images to run. Without provisioning and without
// configured images a single unnamed pass runs against the board as is.
func selectImages(board *config.Board, only []string, skip bool) ([]config.Image, error) {
	if len(only) > 0 {
		images := make([]config.Image, 0, len(only))
		for _, name := range only {
			img, ok := board.Image(name)
			if !ok {
				return nil, fmt.Errorf("image %q is not configured", name)
			}
			images = append(images, img)
		}
		return images, nil
	}
	if len(board.Images) == 0 {
		if skip {
			return []config.Image{{Name: "current"}}, nil
		}
		return nil, errors.New("no images configured")
	}
	return board.Images, nil
}

func terminalWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil {
		return 0
	}
	return w
}
