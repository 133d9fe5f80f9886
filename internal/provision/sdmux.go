package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/go-serial-autotest/internal/shell"
)

const (
	sdMuxCtrl       = "sd-mux-ctrl"
	DefaultTickTime = 2000 * time.Millisecond
)

// SDMux switches an SD card between the test server and the board, and
// power-cycles the board, through the sd-mux-ctrl utility.
type SDMux struct {
	Serial   string
	Sudo     bool
	TickTime time.Duration
	Runner   shell.Runner
	Log      zerolog.Logger
}

// ConnectToTestServer hands the card to the host so it can be flashed.
func (m *SDMux) ConnectToTestServer(ctx context.Context) error {
	_, err := m.run(ctx, StepMuxTestServer, "--ts", m.deviceSerial())
	return err
}

// ConnectToDUT hands the card to the board.
func (m *SDMux) ConnectToDUT(ctx context.Context) error {
	_, err := m.run(ctx, StepMuxDUT, "--dut", m.deviceSerial())
	return err
}

// PowerCycle cuts board power for TickTime.
func (m *SDMux) PowerCycle(ctx context.Context) error {
	tick := m.TickTime
	if tick <= 0 {
		tick = DefaultTickTime
	}
	_, err := m.run(ctx, StepPowerCycle, "--tick", "--tick-time="+strconv.FormatInt(tick.Milliseconds(), 10), m.deviceSerial())
	return err
}

// List returns sd-mux-ctrl's listing of attached muxes.
func (m *SDMux) List(ctx context.Context) (string, error) {
	res, err := m.run(ctx, StepMuxList, "-l")
	return res.Stdout, err
}

// SetSerial writes a new serial number to the attached mux.
func (m *SDMux) SetSerial(ctx context.Context, serial string) error {
	if serial == "" {
		return &ProvisioningError{Step: StepMuxSetSerial, Err: errors.New("empty serial")}
	}
	_, err := m.run(ctx, StepMuxSetSerial, "--set-serial", serial)
	return err
}

func (m *SDMux) deviceSerial() string {
	return "--device-serial=" + m.Serial
}

func (m *SDMux) run(ctx context.Context, step string, args ...string) (shell.Result, error) {
	name := sdMuxCtrl
	if m.Sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}

	m.Log.Info().Str("step", step).Str("device_serial", m.Serial).Msg("sd-mux")
	res, err := runner(m.Runner, m.Log).Run(ctx, name, args...)
	if err != nil {
		return res, &ProvisioningError{Step: step, Err: fmt.Errorf("%s: %w", sdMuxCtrl, err)}
	}
	if res.ExitCode != 0 {
		return res, &ProvisioningError{Step: step, Err: exitError(sdMuxCtrl, res)}
	}
	return res, nil
}

func runner(r shell.Runner, log zerolog.Logger) shell.Runner {
	if r == nil {
		return shell.Exec{Log: log}
	}
	return r
}

func exitError(tool string, res shell.Result) error {
	err := fmt.Errorf("%s exited with code %d", tool, res.ExitCode)
	if out := res.Output(); out != "" {
		err = fmt.Errorf("%w: %s", err, out)
	}
	return err
}
