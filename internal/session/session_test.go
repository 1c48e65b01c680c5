package session

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/hovde/shellyprov/internal/provision"
	"github.com/hovde/shellyprov/internal/wifi"
)

func useTempConfigDir(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("config dir override uses XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func sampleOutcome(ssid, name string, state provision.State) provision.Outcome {
	return provision.Outcome{
		Target: provision.Target{
			Device:       wifi.DiscoveredDevice{SSID: ssid, MAC: "A8032ABE54DC"},
			AssignedName: name,
			WiFi:         provision.WiFiCredentials{SSID: "HomeNet", Password: "hunter2"},
			Broker:       provision.BrokerConfig{Host: "192.168.1.10", Port: 1883, Password: "brokerpass"},
		},
		State:           state,
		DeviceID:        "shellyplus1-a8032abe54dc",
		FirmwareVersion: "1.0.3",
	}
}

func TestAppendAndLoadRoundtrip(t *testing.T) {
	useTempConfigDir(t)

	sess := New("HomeNet", "192.168.1.10", 1883)
	if err := sess.Append(sampleOutcome("ShellyPlus1-A8032ABE54DC", "shelly-001", provision.StateSucceeded)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sess.Append(sampleOutcome("ShellyPlus1-BBBBBBBBBBBB", "shelly-002", provision.StateFailedAtConnect)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sess.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	loaded, err := Load(sess.Path())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.TargetSSID != "HomeNet" || loaded.BrokerHost != "192.168.1.10" || loaded.BrokerPort != 1883 {
		t.Errorf("session header = %s/%s:%d", loaded.TargetSSID, loaded.BrokerHost, loaded.BrokerPort)
	}
	if len(loaded.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(loaded.Records))
	}
	if loaded.Records[0].AssignedName != "shelly-001" || loaded.Records[0].State != "succeeded" {
		t.Errorf("records[0] = %+v", loaded.Records[0])
	}
	if loaded.Records[1].State != "failed_at_connect" {
		t.Errorf("records[1].State = %q", loaded.Records[1].State)
	}
	if loaded.FinishedAt.IsZero() {
		t.Error("FinishedAt not stamped")
	}
}

func TestJournalNeverContainsCredentials(t *testing.T) {
	useTempConfigDir(t)

	sess := New("HomeNet", "192.168.1.10", 1883)
	if err := sess.Append(sampleOutcome("ShellyPlus1-A8032ABE54DC", "shelly-001", provision.StateSucceeded)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(sess.Path())
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	for _, secret := range []string{"hunter2", "brokerpass"} {
		if strings.Contains(string(data), secret) {
			t.Errorf("journal contains credential %q", secret)
		}
	}
}

func TestUpdateVerification(t *testing.T) {
	useTempConfigDir(t)

	sess := New("HomeNet", "192.168.1.10", 1883)
	outcome := sampleOutcome("ShellyPlus1-A8032ABE54DC", "shelly-001", provision.StateSucceeded)
	if err := sess.Append(outcome); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	outcome.FinalIP = "192.168.1.57"
	outcome.VerifyNote = "resolved at 192.168.1.57"
	if err := sess.UpdateVerification([]provision.Outcome{outcome}); err != nil {
		t.Fatalf("UpdateVerification() error = %v", err)
	}

	loaded, err := Load(sess.Path())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Records[0].FinalIP != "192.168.1.57" {
		t.Errorf("FinalIP = %q", loaded.Records[0].FinalIP)
	}
	if loaded.Records[0].VerifyNote == "" {
		t.Error("VerifyNote not persisted")
	}
	if loaded.Records[0].State != "succeeded" {
		t.Errorf("State = %q, verification must not downgrade", loaded.Records[0].State)
	}
}

func TestUpdateVerificationIgnoresUnknownNames(t *testing.T) {
	useTempConfigDir(t)

	sess := New("HomeNet", "192.168.1.10", 1883)
	if err := sess.Append(sampleOutcome("ShellyPlus1-A8032ABE54DC", "shelly-001", provision.StateSucceeded)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	stranger := sampleOutcome("ShellyPlus1-BBBBBBBBBBBB", "shelly-099", provision.StateSucceeded)
	stranger.FinalIP = "192.168.1.99"
	if err := sess.UpdateVerification([]provision.Outcome{stranger}); err != nil {
		t.Fatalf("UpdateVerification() error = %v", err)
	}

	loaded, err := Load(sess.Path())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Records[0].FinalIP != "" {
		t.Errorf("FinalIP = %q, want untouched", loaded.Records[0].FinalIP)
	}
}

func TestPathEmptyBeforeSave(t *testing.T) {
	sess := New("HomeNet", "192.168.1.10", 1883)
	if got := sess.Path(); got != "" {
		t.Errorf("Path() = %q before first save", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	useTempConfigDir(t)

	dir, err := sessionsPath()
	if err != nil {
		t.Fatalf("sessionsPath() error = %v", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"20260810-120000.json", "20260829-090000.json", "20260101-000000.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	paths, err := List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"20260829-090000.json", "20260810-120000.json", "20260101-000000.json"}
	if len(paths) != len(want) {
		t.Fatalf("List() = %v, want %d entries", paths, len(want))
	}
	for i, w := range want {
		if filepath.Base(paths[i]) != w {
			t.Errorf("paths[%d] = %q, want %q", i, filepath.Base(paths[i]), w)
		}
	}
}

func TestListEmptyWhenNoSessions(t *testing.T) {
	useTempConfigDir(t)

	paths, err := List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("List() = %v, want empty", paths)
	}
}
