package provision

import (
	"fmt"

	"github.com/hovde/shellyprov/internal/wifi"
)

// WiFiCredentials are the target network credentials pushed onto devices
type WiFiCredentials struct {
	SSID     string
	Password string
}

// BrokerConfig is the MQTT broker a provisioned device will report to
type BrokerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Address returns the host:port form of the broker address
func (b BrokerConfig) Address() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// Target is one batch entry: a discovered device plus everything needed to
// provision it. AssignedName is unique within a batch and never reused
// within a session (monotonic sequence counter).
type Target struct {
	Device       wifi.DiscoveredDevice
	AssignedName string
	WiFi         WiFiCredentials
	Broker       BrokerConfig
}

// State is the terminal classification of one device's provisioning attempt
type State int

const (
	// StateSucceeded means every required configuration step completed
	StateSucceeded State = iota
	// StateFailedAtConnect means the host never associated with the
	// device's access point
	StateFailedAtConnect
	// StateFailedAtConfigure means a required configuration call failed
	// after the AP association was established
	StateFailedAtConfigure
	// StateFailedAtVerify means post-join verification could not confirm
	// the device (only used by callers that opt to downgrade; the
	// verifier itself annotates without downgrading)
	StateFailedAtVerify
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StateFailedAtConnect:
		return "failed_at_connect"
	case StateFailedAtConfigure:
		return "failed_at_configure"
	case StateFailedAtVerify:
		return "failed_at_verify"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Outcome is the immutable result record for one device's provisioning
// attempt. One is produced per attempted target, appended to the batch
// report and never mutated afterwards; verification annotations go on a
// copy.
type Outcome struct {
	Target      Target
	State       State
	ErrorDetail string

	// DeviceID and FirmwareVersion are filled in when identification
	// succeeded before the failure (or on success)
	DeviceID        string
	FirmwareVersion string

	// VerifyNote is set by the verification stage: either the resolved
	// address or a could-not-confirm note. Never downgrades State.
	VerifyNote string

	// FinalIP is the device's address on the target network, when
	// verification resolved one
	FinalIP string
}

// Succeeded reports whether the attempt reached the terminal success state
func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}

// Step identifies one stage of the per-device state machine, in the only
// allowed transition order.
type Step int

const (
	StepConnecting Step = iota
	StepGetInfo
	StepConfigMQTT
	StepConfigWiFi
	StepDisableCloud
	StepRename
	StepReboot
	StepDisableAP
)

// String returns a human-readable name for the step
func (s Step) String() string {
	switch s {
	case StepConnecting:
		return "connect_ap"
	case StepGetInfo:
		return "get_info"
	case StepConfigMQTT:
		return "config_mqtt"
	case StepConfigWiFi:
		return "config_wifi"
	case StepDisableCloud:
		return "disable_cloud"
	case StepRename:
		return "rename"
	case StepReboot:
		return "reboot"
	case StepDisableAP:
		return "disable_ap"
	default:
		return fmt.Sprintf("Step(%d)", s)
	}
}

// StepStatus is the progress state of one step, for display purposes
type StepStatus int

const (
	StepRunning StepStatus = iota
	StepDone
	StepFailed
	StepSkipped
)

// String returns a human-readable name for the step status
func (s StepStatus) String() string {
	switch s {
	case StepRunning:
		return "running"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("StepStatus(%d)", s)
	}
}

// Events carries the progress callbacks the CLI (or any other frontend)
// hooks into. All fields are optional; nil callbacks are skipped. The core
// never renders anything itself.
type Events struct {
	// DeviceStarted fires before a device's provisioning begins.
	// index is 0-based, total is the batch size.
	DeviceStarted func(index, total int, target Target)

	// StepChanged fires on every step transition of the current device
	StepChanged func(target Target, step Step, status StepStatus, note string)

	// DeviceFinished fires once a device reaches a terminal state
	DeviceFinished func(index int, outcome Outcome)

	// BatchFinished fires after the last device, before WiFi restoration
	BatchFinished func(outcomes []Outcome)

	// RestoreFailed fires when the original network could not be restored.
	// The batch result is unaffected; this is the operator's cue to fix
	// their WiFi by hand.
	RestoreFailed func(err error)
}

func (e Events) deviceStarted(index, total int, target Target) {
	if e.DeviceStarted != nil {
		e.DeviceStarted(index, total, target)
	}
}

func (e Events) stepChanged(target Target, step Step, status StepStatus, note string) {
	if e.StepChanged != nil {
		e.StepChanged(target, step, status, note)
	}
}

func (e Events) deviceFinished(index int, outcome Outcome) {
	if e.DeviceFinished != nil {
		e.DeviceFinished(index, outcome)
	}
}

func (e Events) batchFinished(outcomes []Outcome) {
	if e.BatchFinished != nil {
		e.BatchFinished(outcomes)
	}
}

func (e Events) restoreFailed(err error) {
	if e.RestoreFailed != nil {
		e.RestoreFailed(err)
	}
}
