package provision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hovde/shellyprov/internal/logging"
	"github.com/hovde/shellyprov/internal/shellyrpc"
	"github.com/hovde/shellyprov/internal/wifi"
)

const (
	// DefaultSettleDelay is how long the provisioner waits after issuing a
	// reboot before touching the network again, giving the device time to
	// begin its transition
	DefaultSettleDelay = 2500 * time.Millisecond
)

// APConnector is the slice of the WiFi context a single-device provisioner
// needs: pointing the host radio at one device's access point.
type APConnector interface {
	ConnectDeviceAP(ssid string) error
}

// DeviceAPI is the slice of the device RPC client the provisioner drives.
// *shellyrpc.Client satisfies it; tests substitute fakes.
type DeviceAPI interface {
	GetInfo() (*shellyrpc.DeviceInfo, error)
	SetMQTTConfig(host string, port int, user, password, topicPrefix string) error
	DisableMQTT() error
	SetWiFiConfig(ssid, password string) error
	SetCloudEnabled(enabled bool) error
	Rename(name string) error
	SetDiscoverable(discoverable bool) error
	Reboot() error
	DisableAccessPoint() error
}

// Provisioner drives one device at a time through the provisioning state
// machine:
//
//	Discovered -> Connecting -> Configuring -> Rebooting -> DisablingAP -> terminal
//
// It owns no WiFi state itself; the AP association goes through the
// supplied APConnector and is the caller's (the orchestrator's) to restore.
type Provisioner struct {
	wifi      APConnector
	newClient func() DeviceAPI
	events    Events

	// SettleDelay is the pause after reboot before the AP-disable attempt
	SettleDelay time.Duration

	// DisableCloud controls the optional vendor-cloud-off step
	DisableCloud bool

	// AttemptDisableAP controls the post-reboot AP-disable reconnection.
	// When false the step is skipped entirely.
	AttemptDisableAP bool
}

// NewProvisioner creates a provisioner over the given WiFi connector.
// newClient is called once per device after the AP association is up.
func NewProvisioner(apConn APConnector, newClient func() DeviceAPI) *Provisioner {
	return &Provisioner{
		wifi:             apConn,
		newClient:        newClient,
		SettleDelay:      DefaultSettleDelay,
		DisableCloud:     true,
		AttemptDisableAP: true,
	}
}

// SetEvents installs the progress callbacks
func (p *Provisioner) SetEvents(events Events) {
	p.events = events
}

// Provision runs one device through the full state machine and returns its
// outcome. Errors never escape; every exit path produces a classified
// Outcome. The context bounds the whole attempt; cancellation surfaces as
// a configure-stage failure so the batch report stays complete.
func (p *Provisioner) Provision(ctx context.Context, target Target) Outcome {
	outcome := Outcome{Target: target}

	// Connecting: associate with the device's factory AP. No retry at
	// this layer - re-queueing a failed device is the caller's decision.
	p.step(target, StepConnecting, StepRunning, "")
	if err := p.wifi.ConnectDeviceAP(target.Device.SSID); err != nil {
		p.step(target, StepConnecting, StepFailed, err.Error())
		return p.fail(outcome, StateFailedAtConnect, err)
	}
	p.step(target, StepConnecting, StepDone, "")

	if err := ctx.Err(); err != nil {
		return p.fail(outcome, StateFailedAtConfigure, err)
	}

	client := p.newClient()

	// Configuring: identification first, then the strictly ordered
	// configuration calls. MQTT and WiFi must be staged before reboot;
	// rename affects the topic identity later steps rely on.
	p.step(target, StepGetInfo, StepRunning, "")
	info, err := client.GetInfo()
	if err != nil {
		p.step(target, StepGetInfo, StepFailed, shellyrpc.ShortMessage(err))
		return p.fail(outcome, StateFailedAtConfigure, err)
	}
	outcome.DeviceID = info.ID
	outcome.FirmwareVersion = info.Version
	p.step(target, StepGetInfo, StepDone, info.FriendlyName())

	p.step(target, StepConfigMQTT, StepRunning, "")
	err = client.SetMQTTConfig(
		target.Broker.Host, target.Broker.Port,
		target.Broker.Username, target.Broker.Password,
		target.AssignedName,
	)
	if err != nil {
		p.step(target, StepConfigMQTT, StepFailed, shellyrpc.ShortMessage(err))
		return p.fail(outcome, StateFailedAtConfigure, err)
	}
	p.step(target, StepConfigMQTT, StepDone, "")

	p.step(target, StepConfigWiFi, StepRunning, "")
	if err := client.SetWiFiConfig(target.WiFi.SSID, target.WiFi.Password); err != nil {
		p.step(target, StepConfigWiFi, StepFailed, shellyrpc.ShortMessage(err))
		p.rollback(client, target)
		return p.fail(outcome, StateFailedAtConfigure, err)
	}
	p.step(target, StepConfigWiFi, StepDone, "")

	// Cloud disable is best-effort; some models ship without the cloud
	// component at all
	if p.DisableCloud {
		p.step(target, StepDisableCloud, StepRunning, "")
		if err := client.SetCloudEnabled(false); err != nil {
			logging.Warn("Cloud disable failed (non-fatal)",
				zap.String("device", target.Device.SSID),
				zap.Error(err),
			)
			p.step(target, StepDisableCloud, StepSkipped, shellyrpc.ShortMessage(err))
		} else {
			p.step(target, StepDisableCloud, StepDone, "")
		}
	}

	p.step(target, StepRename, StepRunning, target.AssignedName)
	if err := client.Rename(target.AssignedName); err != nil {
		p.step(target, StepRename, StepFailed, shellyrpc.ShortMessage(err))
		p.rollback(client, target)
		return p.fail(outcome, StateFailedAtConfigure, err)
	}
	if err := client.SetDiscoverable(false); err != nil {
		// Discoverability is cosmetic; the rename itself succeeded
		logging.Warn("SetDiscoverable failed (non-fatal)",
			zap.String("device", target.Device.SSID),
			zap.Error(err),
		)
	}
	p.step(target, StepRename, StepDone, "")

	if err := ctx.Err(); err != nil {
		p.rollback(client, target)
		return p.fail(outcome, StateFailedAtConfigure, err)
	}

	// Rebooting: fire-and-forget, then a brief settle delay while the
	// device drops its AP and begins joining the target network
	p.step(target, StepReboot, StepRunning, "")
	if err := client.Reboot(); err != nil {
		p.step(target, StepReboot, StepFailed, shellyrpc.ShortMessage(err))
		p.rollback(client, target)
		return p.fail(outcome, StateFailedAtConfigure, err)
	}
	p.settle(ctx)
	p.step(target, StepReboot, StepDone, "")

	// DisablingAP: best-effort follow-up. If the AP is already gone the
	// device has moved on to client mode, which is exactly what we want.
	if p.AttemptDisableAP {
		p.step(target, StepDisableAP, StepRunning, "")
		if err := p.wifi.ConnectDeviceAP(target.Device.SSID); err != nil {
			p.step(target, StepDisableAP, StepSkipped, "AP already gone")
		} else if err := client.DisableAccessPoint(); err != nil {
			logging.Warn("AP disable failed (non-fatal)",
				zap.String("device", target.Device.SSID),
				zap.Error(err),
			)
			p.step(target, StepDisableAP, StepSkipped, shellyrpc.ShortMessage(err))
		} else {
			p.step(target, StepDisableAP, StepDone, "")
		}
	}

	outcome.State = StateSucceeded
	logging.LogOutcome(target.Device.SSID, target.AssignedName, outcome.State.String(), "")
	return outcome
}

// rollback un-stages the broker config on a device that failed after MQTT
// was configured, so it never starts reporting in under a half-applied
// identity. Best-effort: the device is failed either way.
func (p *Provisioner) rollback(client DeviceAPI, target Target) {
	if err := client.DisableMQTT(); err != nil {
		logging.Warn("MQTT rollback failed; device may be half-configured",
			zap.String("device", target.Device.SSID),
			zap.Error(err),
		)
		return
	}
	logging.Info("Rolled back staged MQTT config",
		zap.String("device", target.Device.SSID),
	)
}

// fail finalizes a failed outcome with the raw error captured in
// ErrorDetail
func (p *Provisioner) fail(outcome Outcome, state State, err error) Outcome {
	outcome.State = state
	if err != nil {
		outcome.ErrorDetail = err.Error()
	}
	logging.LogOutcome(outcome.Target.Device.SSID, outcome.Target.AssignedName,
		state.String(), outcome.ErrorDetail)
	return outcome
}

// settle sleeps for the post-reboot settle delay, honoring cancellation
func (p *Provisioner) settle(ctx context.Context) {
	timer := time.NewTimer(p.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (p *Provisioner) step(target Target, step Step, status StepStatus, note string) {
	logging.LogDeviceStep(target.Device.SSID, step.String(), status.String())
	p.events.stepChanged(target, step, status, note)
}

// NewDeviceClientFactory returns the production client factory: a fresh
// shellyrpc client for the factory AP address per device.
func NewDeviceClientFactory() func() DeviceAPI {
	return func() DeviceAPI {
		return shellyrpc.NewAPClient()
	}
}

// Ensure the production types satisfy the provisioner's interfaces
var (
	_ DeviceAPI   = (*shellyrpc.Client)(nil)
	_ APConnector = (*wifi.Context)(nil)
)
