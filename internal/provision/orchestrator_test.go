package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/hovde/shellyprov/internal/wifi"
)

// fakeBatchWiFi scripts the whole batch surface: capture, per-device AP
// switches, restore.
type fakeBatchWiFi struct {
	fakeConnector

	captureState wifi.State
	captureErr   error
	captures     int

	restoreErr error
	restores   int
}

func (f *fakeBatchWiFi) Capture() (wifi.State, error) {
	f.captures++
	if f.captureErr != nil {
		return wifi.State{}, f.captureErr
	}
	return f.captureState, nil
}

func (f *fakeBatchWiFi) Restore() error {
	f.restores++
	return f.restoreErr
}

func homeState() wifi.State {
	return wifi.State{OriginalSSID: "HomeNet", Associated: true}
}

func namedTarget(ssid, name string) Target {
	t := testTarget()
	t.Device.SSID = ssid
	t.AssignedName = name
	return t
}

// newTestOrchestrator builds an orchestrator over the fakes with the
// per-device extras turned off so each target makes exactly one AP
// association.
func newTestOrchestrator(fw *fakeBatchWiFi, dev *fakeDevice) *Orchestrator {
	o := NewOrchestrator(fw, func() DeviceAPI { return dev })
	o.Provisioner().SettleDelay = 0
	o.Provisioner().AttemptDisableAP = false
	return o
}

func TestRunEmptyBatch(t *testing.T) {
	fw := &fakeBatchWiFi{captureState: homeState()}
	o := newTestOrchestrator(fw, newFakeDevice())

	outcomes, err := o.Run(context.Background(), nil)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("outcomes = %v, want empty", outcomes)
	}
	if fw.captures != 0 || fw.restores != 0 {
		t.Errorf("adapter touched for an empty batch: captures=%d restores=%d", fw.captures, fw.restores)
	}
}

func TestRunCaptureFailureAborts(t *testing.T) {
	fw := &fakeBatchWiFi{captureErr: wifi.NewAdapterError("no wireless adapter found", nil)}
	o := newTestOrchestrator(fw, newFakeDevice())

	outcomes, err := o.Run(context.Background(), []Target{testTarget()})

	if err == nil {
		t.Fatal("Run() error = nil, want the capture error")
	}
	if !wifi.IsAdapterUnavailable(err) {
		t.Errorf("error = %v, want adapter error", err)
	}
	if outcomes != nil {
		t.Errorf("outcomes = %v, want nil", outcomes)
	}
	if len(fw.calls) != 0 {
		t.Errorf("device APs touched after capture failure: %v", fw.calls)
	}
	if fw.restores != 0 {
		t.Errorf("restores = %d, want 0 when nothing was captured", fw.restores)
	}
}

func TestRunPreservesOrderThroughFailures(t *testing.T) {
	// Middle device's AP never comes up; the batch continues regardless
	fw := &fakeBatchWiFi{
		captureState: homeState(),
		fakeConnector: fakeConnector{
			errs: []error{nil, wifi.NewTimeoutError("ShellyPlus1-BBBBBBBBBBBB"), nil},
		},
	}
	o := newTestOrchestrator(fw, newFakeDevice())

	targets := []Target{
		namedTarget("ShellyPlus1-AAAAAAAAAAAA", "shelly-001"),
		namedTarget("ShellyPlus1-BBBBBBBBBBBB", "shelly-002"),
		namedTarget("ShellyPlus1PM-CCCCCCCCCCCC", "shelly-003"),
	}

	outcomes, err := o.Run(context.Background(), targets)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcomes) != len(targets) {
		t.Fatalf("got %d outcomes for %d targets", len(outcomes), len(targets))
	}
	for i, outcome := range outcomes {
		if outcome.Target.AssignedName != targets[i].AssignedName {
			t.Errorf("outcomes[%d] is %q, want %q", i, outcome.Target.AssignedName, targets[i].AssignedName)
		}
	}
	wantStates := []State{StateSucceeded, StateFailedAtConnect, StateSucceeded}
	for i, want := range wantStates {
		if outcomes[i].State != want {
			t.Errorf("outcomes[%d].State = %v, want %v", i, outcomes[i].State, want)
		}
	}
	if fw.restores != 1 {
		t.Errorf("restores = %d, want exactly 1", fw.restores)
	}
}

func TestRunRestoresOnceWhenEveryDeviceFails(t *testing.T) {
	fw := &fakeBatchWiFi{
		captureState: homeState(),
		fakeConnector: fakeConnector{
			errs: []error{wifi.NewTimeoutError("a"), wifi.NewAuthError("b")},
		},
	}
	o := newTestOrchestrator(fw, newFakeDevice())

	outcomes, err := o.Run(context.Background(), []Target{
		namedTarget("a", "shelly-001"),
		namedTarget("b", "shelly-002"),
	})

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, outcome := range outcomes {
		if outcome.State != StateFailedAtConnect {
			t.Errorf("outcomes[%d].State = %v, want failed_at_connect", i, outcome.State)
		}
	}
	if fw.captures != 1 || fw.restores != 1 {
		t.Errorf("captures=%d restores=%d, want 1 and 1", fw.captures, fw.restores)
	}
}

func TestRunCheckpointPerDevice(t *testing.T) {
	fw := &fakeBatchWiFi{captureState: homeState()}
	o := newTestOrchestrator(fw, newFakeDevice())

	var checkpointed []string
	o.Checkpoint = func(outcome Outcome) error {
		checkpointed = append(checkpointed, outcome.Target.AssignedName)
		return nil
	}

	targets := []Target{
		namedTarget("ShellyPlus1-AAAAAAAAAAAA", "shelly-001"),
		namedTarget("ShellyPlus1-BBBBBBBBBBBB", "shelly-002"),
	}
	if _, err := o.Run(context.Background(), targets); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(checkpointed) != 2 || checkpointed[0] != "shelly-001" || checkpointed[1] != "shelly-002" {
		t.Errorf("checkpointed = %v", checkpointed)
	}
}

func TestRunCheckpointErrorIsNonFatal(t *testing.T) {
	fw := &fakeBatchWiFi{captureState: homeState()}
	o := newTestOrchestrator(fw, newFakeDevice())
	o.Checkpoint = func(Outcome) error { return errors.New("disk full") }

	outcomes, err := o.Run(context.Background(), []Target{testTarget()})

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Succeeded() {
		t.Errorf("outcomes = %v, want one success", outcomes)
	}
}

func TestRunCancellationReturnsPartialOutcomes(t *testing.T) {
	fw := &fakeBatchWiFi{captureState: homeState()}
	dev := newFakeDevice()
	o := newTestOrchestrator(fw, dev)

	ctx, cancel := context.WithCancel(context.Background())
	o.SetEvents(Events{
		DeviceFinished: func(index int, _ Outcome) {
			if index == 0 {
				cancel()
			}
		},
	})

	targets := []Target{
		namedTarget("ShellyPlus1-AAAAAAAAAAAA", "shelly-001"),
		namedTarget("ShellyPlus1-BBBBBBBBBBBB", "shelly-002"),
		namedTarget("ShellyPlus1-CCCCCCCCCCCC", "shelly-003"),
	}

	outcomes, err := o.Run(ctx, targets)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1 before cancellation took effect", len(outcomes))
	}
	if fw.restores != 1 {
		t.Errorf("restores = %d, want 1 even on cancellation", fw.restores)
	}
}

func TestRunRestoreFailureIsWarningOnly(t *testing.T) {
	fw := &fakeBatchWiFi{
		captureState: homeState(),
		restoreErr:   wifi.NewRestoreError("HomeNet", errors.New("network unavailable")),
	}
	o := newTestOrchestrator(fw, newFakeDevice())

	var restoreErr error
	o.SetEvents(Events{
		RestoreFailed: func(err error) { restoreErr = err },
	})

	outcomes, err := o.Run(context.Background(), []Target{testTarget()})

	if err != nil {
		t.Fatalf("Run() error = %v, restore failure must not surface as a batch error", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Succeeded() {
		t.Errorf("outcomes = %v, want one success", outcomes)
	}
	if !wifi.IsRestoreFailed(restoreErr) {
		t.Errorf("RestoreFailed got %v, want the restore error", restoreErr)
	}
}

func TestRunEvents(t *testing.T) {
	fw := &fakeBatchWiFi{captureState: homeState()}
	o := newTestOrchestrator(fw, newFakeDevice())

	var started, finished int
	var batchSize int
	o.SetEvents(Events{
		DeviceStarted:  func(index, total int, _ Target) { started++ },
		DeviceFinished: func(index int, _ Outcome) { finished++ },
		BatchFinished:  func(outcomes []Outcome) { batchSize = len(outcomes) },
	})

	targets := []Target{
		namedTarget("ShellyPlus1-AAAAAAAAAAAA", "shelly-001"),
		namedTarget("ShellyPlus1-BBBBBBBBBBBB", "shelly-002"),
	}
	if _, err := o.Run(context.Background(), targets); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if started != 2 || finished != 2 || batchSize != 2 {
		t.Errorf("started=%d finished=%d batch=%d, want 2/2/2", started, finished, batchSize)
	}
}
