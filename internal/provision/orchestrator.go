package provision

import (
	"context"

	"go.uber.org/zap"

	"github.com/hovde/shellyprov/internal/logging"
	"github.com/hovde/shellyprov/internal/wifi"
)

// BatchWiFi is the slice of the WiFi context the orchestrator owns for a
// whole batch: capture once, per-device AP switches, restore once.
// *wifi.Context satisfies it.
type BatchWiFi interface {
	APConnector
	Capture() (wifi.State, error)
	Restore() error
}

// Orchestrator runs a batch of provisioning targets strictly serially.
//
// It owns the WiFi context for the batch lifetime: the original network is
// captured exactly once before any device work, every target is attempted
// regardless of earlier failures, and the original network is restored
// exactly once after the last attempt - including when the batch is
// cancelled mid-flight.
type Orchestrator struct {
	wifi   BatchWiFi
	prov   *Provisioner
	events Events

	// Checkpoint, when set, is called after each device's outcome is
	// recorded (session checkpointing). Errors are logged, never fatal.
	Checkpoint func(outcome Outcome) error
}

// NewOrchestrator creates an orchestrator over the given WiFi context and
// device client factory.
func NewOrchestrator(batchWiFi BatchWiFi, newClient func() DeviceAPI) *Orchestrator {
	return &Orchestrator{
		wifi: batchWiFi,
		prov: NewProvisioner(batchWiFi, newClient),
	}
}

// SetEvents installs the progress callbacks for the batch and its devices
func (o *Orchestrator) SetEvents(events Events) {
	o.events = events
	o.prov.SetEvents(events)
}

// Provisioner exposes the per-device provisioner for option tweaks
func (o *Orchestrator) Provisioner() *Provisioner {
	return o.prov
}

// Run provisions every target in order and returns one outcome per
// attempted target, order preserved.
//
// Device-level failures never stop the batch; only a failure to capture
// the host's original WiFi state aborts, before any device is touched.
// An empty target list returns immediately without touching the adapter.
// On context cancellation the remaining targets are not attempted, but the
// outcomes so far are returned together with the context's error - and the
// original network is still restored.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) ([]Outcome, error) {
	if len(targets) == 0 {
		return []Outcome{}, nil
	}

	// Capture exactly once, before any device-AP association. Failure
	// here is the only fatal error a batch can have.
	state, err := o.wifi.Capture()
	if err != nil {
		return nil, err
	}
	logging.Info("Batch started",
		zap.Int("targets", len(targets)),
		zap.String("original_network", state.OriginalSSID),
	)

	// Restore is guaranteed on every exit path. A restore failure is a
	// warning on the way out, never an error that masks the batch result.
	defer func() {
		if err := o.wifi.Restore(); err != nil {
			logging.Warn("Could not restore original network", zap.Error(err))
			o.events.restoreFailed(err)
		}
	}()

	outcomes := make([]Outcome, 0, len(targets))

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			logging.Warn("Batch cancelled",
				zap.Int("attempted", len(outcomes)),
				zap.Int("remaining", len(targets)-len(outcomes)),
			)
			return outcomes, err
		}

		o.events.deviceStarted(i, len(targets), target)
		outcome := o.prov.Provision(ctx, target)
		outcomes = append(outcomes, outcome)
		o.events.deviceFinished(i, outcome)

		if o.Checkpoint != nil {
			if err := o.Checkpoint(outcome); err != nil {
				logging.Warn("Checkpoint write failed", zap.Error(err))
			}
		}
	}

	o.events.batchFinished(outcomes)
	return outcomes, nil
}
