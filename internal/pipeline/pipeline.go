// Package pipeline runs the suite against each OS image: provision the
// card, boot the board, log in, execute the suite and report.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/allbin/go-serial-autotest/internal/config"
	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/shell"
	"github.com/allbin/go-serial-autotest/internal/suite"
)

// Mux switches the SD card and power-cycles the board.
type Mux interface {
	ConnectToTestServer(ctx context.Context) error
	ConnectToDUT(ctx context.Context) error
	PowerCycle(ctx context.Context) error
}

// ImageStore fetches and flashes OS images.
type ImageStore interface {
	Download(ctx context.Context, name, url string) (string, error)
	Flash(ctx context.Context, name string) error
}

// Console is the part of console.Console a run needs.
type Console interface {
	Start(ctx context.Context) error
	Stop() error
	suite.CommandRunner
}

// Report is the outcome for one image.
type Report struct {
	RunID    string
	Image    string
	Started  time.Time
	Finished time.Time

	// LoginFailed means the board never reached a shell before the login
	// timeout; no case ran.
	LoginFailed bool
	Err         error
	Verdicts    []suite.Verdict
}

// Counts returns passed and failed verdicts.
func (r *Report) Counts() (passed, failed int) {
	return suite.Summarize(r.Verdicts)
}

// OK reports whether the image ran to completion with every case passing.
func (r *Report) OK() bool {
	_, failed := r.Counts()
	return r.Err == nil && !r.LoginFailed && failed == 0
}

// Pipeline holds everything shared by the images of one run.
type Pipeline struct {
	RunID string
	Mux   Mux
	Store ImageStore
	// NewConsole opens a fresh console for every image.
	NewConsole    func() (Console, error)
	Cases         []suite.TestCase
	JudgeDir      string
	Runner        shell.Runner
	SkipProvision bool
	Log           zerolog.Logger
}

// RunAll runs every image in order under one run id. Cancelling ctx stops
// after the image in progress.
func (p *Pipeline) RunAll(ctx context.Context, images []config.Image) []*Report {
	runID := p.runID()
	reports := make([]*Report, 0, len(images))
	for _, img := range images {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, p.run(ctx, img, runID))
	}
	return reports
}

// Run provisions and tests a single image. It does not modify p.
func (p *Pipeline) Run(ctx context.Context, img config.Image) *Report {
	return p.run(ctx, img, p.runID())
}

// runID is RunID, or a fresh id when none is set.
func (p *Pipeline) runID() string {
	if p.RunID != "" {
		return p.RunID
	}
	return uuid.NewString()
}

func (p *Pipeline) run(ctx context.Context, img config.Image, runID string) *Report {
	log := p.Log.With().Str("image", img.Name).Str("run_id", runID).Logger()
	rep := &Report{RunID: runID, Image: img.Name, Started: time.Now()}
	defer func() { rep.Finished = time.Now() }()

	if !p.SkipProvision {
		if err := p.provision(ctx, img, log); err != nil {
			log.Error().Err(err).Msg("provisioning failed")
			rep.Err = err
			return rep
		}
	}

	con, err := p.NewConsole()
	if err != nil {
		log.Error().Err(err).Msg("failed to create console")
		rep.Err = err
		return rep
	}
	defer func() {
		if err := con.Stop(); err != nil {
			log.Debug().Err(err).Msg("error stopping console")
		}
	}()

	log.Info().Msg("starting console")
	if err := con.Start(ctx); err != nil {
		rep.Err = err
		if errors.Is(err, console.ErrLoginTimeout) {
			log.Error().Err(err).Msg("login failed")
			rep.LoginFailed = true
			return rep
		}
		log.Error().Err(err).Msg("console did not start")
		return rep
	}

	exec := &suite.Executor{
		Console:  con,
		Runner:   p.Runner,
		JudgeDir: p.JudgeDir,
		Log:      log,
	}
	rep.Verdicts = exec.Execute(ctx, p.Cases)

	passed, failed := rep.Counts()
	log.Info().Int("passed", passed).Int("failed", failed).Msg("suite finished")
	return rep
}

// provision flashes img and boots the board. The card is switched to the
// host while the image downloads.
func (p *Pipeline) provision(ctx context.Context, img config.Image, log zerolog.Logger) error {
	if p.Mux == nil || p.Store == nil {
		return errors.New("provisioning needs a mux and an image store")
	}

	log.Info().Msg("switching card to test server and fetching image")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Mux.ConnectToTestServer(gctx) })
	g.Go(func() error {
		_, err := p.Store.Download(gctx, img.Name, img.URL)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.Store.Flash(ctx, img.Name); err != nil {
		return err
	}
	if err := p.Mux.ConnectToDUT(ctx); err != nil {
		return err
	}
	log.Info().Msg("power cycling board")
	return p.Mux.PowerCycle(ctx)
}

// ConsoleFactory returns a NewConsole that builds console.Console values
// from a fixed session, opener and options.
func ConsoleFactory(sess console.Session, open console.Opener, opts ...console.Option) func() (Console, error) {
	return func() (Console, error) {
		c, err := console.New(sess, open, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
