package provision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hovde/shellyprov/internal/shellyrpc"
	"github.com/hovde/shellyprov/internal/wifi"
)

// fakeConnector scripts ConnectDeviceAP per call. Errors are popped from
// errs in order; a nil entry (or an exhausted slice) means success.
type fakeConnector struct {
	calls []string
	errs  []error
}

func (f *fakeConnector) ConnectDeviceAP(ssid string) error {
	f.calls = append(f.calls, ssid)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

// fakeDevice records each RPC call by name and fails the methods listed in
// failOn.
type fakeDevice struct {
	calls  []string
	failOn map[string]error

	info         shellyrpc.DeviceInfo
	mqttHost     string
	mqttPort     int
	mqttPrefix   string
	wifiSSID     string
	wifiPassword string
	renamedTo    string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		failOn: map[string]error{},
		info: shellyrpc.DeviceInfo{
			ID:      "shellyplus1-a8032abe54dc",
			MAC:     "A8032ABE54DC",
			Gen:     2,
			Version: "1.0.3",
		},
	}
}

func (f *fakeDevice) call(name string) error {
	f.calls = append(f.calls, name)
	return f.failOn[name]
}

func (f *fakeDevice) called(name string) bool {
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeDevice) GetInfo() (*shellyrpc.DeviceInfo, error) {
	if err := f.call("GetInfo"); err != nil {
		return nil, err
	}
	info := f.info
	return &info, nil
}

func (f *fakeDevice) SetMQTTConfig(host string, port int, user, password, topicPrefix string) error {
	f.mqttHost, f.mqttPort, f.mqttPrefix = host, port, topicPrefix
	return f.call("SetMQTTConfig")
}

func (f *fakeDevice) DisableMQTT() error {
	return f.call("DisableMQTT")
}

func (f *fakeDevice) SetWiFiConfig(ssid, password string) error {
	f.wifiSSID, f.wifiPassword = ssid, password
	return f.call("SetWiFiConfig")
}

func (f *fakeDevice) SetCloudEnabled(enabled bool) error {
	return f.call("SetCloudEnabled")
}

func (f *fakeDevice) Rename(name string) error {
	f.renamedTo = name
	return f.call("Rename")
}

func (f *fakeDevice) SetDiscoverable(discoverable bool) error {
	return f.call("SetDiscoverable")
}

func (f *fakeDevice) Reboot() error {
	return f.call("Reboot")
}

func (f *fakeDevice) DisableAccessPoint() error {
	return f.call("DisableAccessPoint")
}

func testTarget() Target {
	return Target{
		Device: wifi.DiscoveredDevice{
			SSID:  "ShellyPlus1-A8032ABE54DC",
			Model: "Shelly Plus 1",
			MAC:   "A8032ABE54DC",
			RSSI:  -48,
		},
		AssignedName: "shelly-001",
		WiFi:         WiFiCredentials{SSID: "HomeNet", Password: "hunter2"},
		Broker:       BrokerConfig{Host: "192.168.1.10", Port: 1883, Username: "mqtt"},
	}
}

// newTestProvisioner wires a provisioner over the fakes with the settle
// delay zeroed so tests run instantly.
func newTestProvisioner(conn *fakeConnector, dev *fakeDevice) *Provisioner {
	p := NewProvisioner(conn, func() DeviceAPI { return dev })
	p.SettleDelay = 0
	return p
}

func TestProvisionHappyPath(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if !outcome.Succeeded() {
		t.Fatalf("State = %v, want succeeded (detail: %q)", outcome.State, outcome.ErrorDetail)
	}
	if outcome.DeviceID != "shellyplus1-a8032abe54dc" {
		t.Errorf("DeviceID = %q", outcome.DeviceID)
	}
	if outcome.FirmwareVersion != "1.0.3" {
		t.Errorf("FirmwareVersion = %q", outcome.FirmwareVersion)
	}

	want := []string{
		"GetInfo", "SetMQTTConfig", "SetWiFiConfig", "SetCloudEnabled",
		"Rename", "SetDiscoverable", "Reboot", "DisableAccessPoint",
	}
	if len(dev.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", dev.calls, want)
	}
	for i := range want {
		if dev.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, dev.calls[i], want[i])
		}
	}

	// Initial association plus the post-reboot reconnect for AP disable
	if len(conn.calls) != 2 {
		t.Errorf("ConnectDeviceAP calls = %v, want 2", conn.calls)
	}
}

func TestProvisionPushesTargetConfig(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)

	p.Provision(context.Background(), testTarget())

	if dev.mqttHost != "192.168.1.10" || dev.mqttPort != 1883 {
		t.Errorf("broker = %s:%d, want 192.168.1.10:1883", dev.mqttHost, dev.mqttPort)
	}
	if dev.mqttPrefix != "shelly-001" {
		t.Errorf("topic prefix = %q, want assigned name", dev.mqttPrefix)
	}
	if dev.wifiSSID != "HomeNet" || dev.wifiPassword != "hunter2" {
		t.Errorf("wifi = %q/%q", dev.wifiSSID, dev.wifiPassword)
	}
	if dev.renamedTo != "shelly-001" {
		t.Errorf("renamed to %q, want shelly-001", dev.renamedTo)
	}
}

func TestProvisionConnectFailure(t *testing.T) {
	conn := &fakeConnector{errs: []error{wifi.NewTimeoutError("ShellyPlus1-A8032ABE54DC")}}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if outcome.State != StateFailedAtConnect {
		t.Fatalf("State = %v, want failed_at_connect", outcome.State)
	}
	if outcome.ErrorDetail == "" {
		t.Error("ErrorDetail empty, want the connect error")
	}
	if len(dev.calls) != 0 {
		t.Errorf("device was called despite connect failure: %v", dev.calls)
	}
}

func TestProvisionGetInfoFailure(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["GetInfo"] = errors.New("connection refused")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if outcome.State != StateFailedAtConfigure {
		t.Fatalf("State = %v, want failed_at_configure", outcome.State)
	}
	if outcome.DeviceID != "" {
		t.Errorf("DeviceID = %q, want empty when identification failed", outcome.DeviceID)
	}
}

func TestProvisionMQTTFailureStopsBeforeReboot(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["SetMQTTConfig"] = errors.New("rpc error -103: invalid argument")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if outcome.State != StateFailedAtConfigure {
		t.Fatalf("State = %v, want failed_at_configure", outcome.State)
	}
	// Identification already happened, so the partial identity is kept
	if outcome.DeviceID != "shellyplus1-a8032abe54dc" {
		t.Errorf("DeviceID = %q, want the identified ID", outcome.DeviceID)
	}
	if dev.called("Reboot") {
		t.Error("Reboot issued after a failed configuration call")
	}
	if dev.called("SetWiFiConfig") {
		t.Error("SetWiFiConfig issued after MQTT configuration failed")
	}
	// Nothing was staged, so there is nothing to roll back
	if dev.called("DisableMQTT") {
		t.Error("rollback attempted when MQTT was never configured")
	}
}

func TestProvisionWiFiFailureRollsBackMQTT(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["SetWiFiConfig"] = errors.New("rpc error -103: invalid argument")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if outcome.State != StateFailedAtConfigure {
		t.Fatalf("State = %v, want failed_at_configure", outcome.State)
	}
	if !dev.called("DisableMQTT") {
		t.Error("staged MQTT config not rolled back")
	}
	if dev.called("Reboot") {
		t.Error("Reboot issued after a failed configuration call")
	}
}

func TestProvisionRollbackFailureIsNonFatal(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["SetWiFiConfig"] = errors.New("rpc error -103: invalid argument")
	dev.failOn["DisableMQTT"] = errors.New("connection reset")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	// The outcome reflects the original failure, not the rollback's
	if outcome.State != StateFailedAtConfigure {
		t.Fatalf("State = %v, want failed_at_configure", outcome.State)
	}
	if !strings.Contains(outcome.ErrorDetail, "-103") {
		t.Errorf("ErrorDetail = %q, want the configure error", outcome.ErrorDetail)
	}
}

func TestProvisionCloudDisableFailureIsNonFatal(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["SetCloudEnabled"] = errors.New("component not found")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if !outcome.Succeeded() {
		t.Fatalf("State = %v, want succeeded despite cloud failure", outcome.State)
	}
	if !dev.called("Reboot") {
		t.Error("Reboot never issued")
	}
}

func TestProvisionSkipsCloudWhenDisabled(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)
	p.DisableCloud = false

	p.Provision(context.Background(), testTarget())

	if dev.called("SetCloudEnabled") {
		t.Error("SetCloudEnabled called with DisableCloud off")
	}
}

func TestProvisionRenameFailure(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["Rename"] = errors.New("rpc error -108: resource unavailable")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if outcome.State != StateFailedAtConfigure {
		t.Fatalf("State = %v, want failed_at_configure", outcome.State)
	}
	if dev.called("Reboot") {
		t.Error("Reboot issued after rename failed")
	}
	if !dev.called("DisableMQTT") {
		t.Error("staged MQTT config not rolled back after rename failure")
	}
}

func TestProvisionDiscoverableFailureIsNonFatal(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["SetDiscoverable"] = errors.New("rpc error -114: unsupported")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if !outcome.Succeeded() {
		t.Fatalf("State = %v, want succeeded", outcome.State)
	}
}

func TestProvisionAPGoneAfterReboot(t *testing.T) {
	// First association succeeds, the post-reboot reconnect fails because
	// the device already switched to client mode
	conn := &fakeConnector{errs: []error{nil, wifi.NewTimeoutError("ShellyPlus1-A8032ABE54DC")}}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)

	var steps []string
	p.SetEvents(Events{
		StepChanged: func(_ Target, step Step, status StepStatus, note string) {
			steps = append(steps, step.String()+"/"+status.String())
		},
	})

	outcome := p.Provision(context.Background(), testTarget())

	if !outcome.Succeeded() {
		t.Fatalf("State = %v, want succeeded when AP is already gone", outcome.State)
	}
	if dev.called("DisableAccessPoint") {
		t.Error("DisableAccessPoint called without a live association")
	}
	if steps[len(steps)-1] != "disable_ap/skipped" {
		t.Errorf("last step = %q, want disable_ap/skipped", steps[len(steps)-1])
	}
}

func TestProvisionDisableAPFailureIsNonFatal(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	dev.failOn["DisableAccessPoint"] = errors.New("connection reset")
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(context.Background(), testTarget())

	if !outcome.Succeeded() {
		t.Fatalf("State = %v, want succeeded", outcome.State)
	}
}

func TestProvisionSkipsAPDisableWhenOff(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)
	p.AttemptDisableAP = false

	outcome := p.Provision(context.Background(), testTarget())

	if !outcome.Succeeded() {
		t.Fatalf("State = %v, want succeeded", outcome.State)
	}
	if dev.called("DisableAccessPoint") {
		t.Error("DisableAccessPoint called with AttemptDisableAP off")
	}
	if len(conn.calls) != 1 {
		t.Errorf("ConnectDeviceAP calls = %d, want only the initial association", len(conn.calls))
	}
}

func TestProvisionCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := &fakeConnector{}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)

	outcome := p.Provision(ctx, testTarget())

	if outcome.State != StateFailedAtConfigure {
		t.Fatalf("State = %v, want failed_at_configure on cancellation", outcome.State)
	}
	if dev.called("Reboot") {
		t.Error("Reboot issued under a cancelled context")
	}
}

func TestProvisionStepOrder(t *testing.T) {
	conn := &fakeConnector{}
	dev := newFakeDevice()
	p := newTestProvisioner(conn, dev)

	var done []Step
	p.SetEvents(Events{
		StepChanged: func(_ Target, step Step, status StepStatus, _ string) {
			if status == StepDone {
				done = append(done, step)
			}
		},
	})

	p.Provision(context.Background(), testTarget())

	want := []Step{
		StepConnecting, StepGetInfo, StepConfigMQTT, StepConfigWiFi,
		StepDisableCloud, StepRename, StepReboot, StepDisableAP,
	}
	if len(done) != len(want) {
		t.Fatalf("completed steps = %v, want %v", done, want)
	}
	for i := range want {
		if done[i] != want[i] {
			t.Errorf("done[%d] = %v, want %v", i, done[i], want[i])
		}
	}
}
