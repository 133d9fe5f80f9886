package provision

import "fmt"

// Steps named in a ProvisioningError.
const (
	StepMuxTestServer = "mux_ts"
	StepMuxDUT        = "mux_dut"
	StepPowerCycle    = "power_cycle"
	StepMuxList       = "mux_list"
	StepMuxSetSerial  = "mux_set_serial"
	StepDownload      = "download"
	StepFlash         = "flash"
)

// ProvisioningError reports which provisioning step failed. It aborts the
// run for that image before the console is touched.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
