package wifi

import (
	"errors"
	"testing"
)

func TestScanDevices(t *testing.T) {
	ctrl := &fakeController{
		networks: []Network{
			{SSID: "ShellyPlus1-A8032ABE54DC", SignalDBm: -41, Security: "Open"},
			{SSID: "HomeNet", SignalDBm: -50, Security: "WPA2"},
			{SSID: "ShellyPro4PM-EC62608AB1C8", SignalDBm: -67, Security: "Open"},
			{SSID: "Coffee Shop 5G", SignalDBm: -78, Security: "WPA2"},
		},
	}

	devices, err := ScanDevices(ctrl)
	if err != nil {
		t.Fatalf("ScanDevices() error = %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("ScanDevices() returned %d devices, want 2", len(devices))
	}
	if devices[0].SSID != "ShellyPlus1-A8032ABE54DC" {
		t.Errorf("devices[0].SSID = %q, want the strongest Shelly AP first", devices[0].SSID)
	}
	if devices[1].MAC != "EC62608AB1C8" {
		t.Errorf("devices[1].MAC = %q, want EC62608AB1C8", devices[1].MAC)
	}
}

func TestScanDevicesPropagatesError(t *testing.T) {
	ctrl := &fakeController{scanErr: errors.New("scan tool failed")}

	if _, err := ScanDevices(ctrl); err == nil {
		t.Error("ScanDevices() should propagate scan errors")
	}
}

func TestScanDevicesEmpty(t *testing.T) {
	devices, err := ScanDevices(&fakeController{})
	if err != nil {
		t.Fatalf("ScanDevices() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("ScanDevices() returned %d devices, want 0", len(devices))
	}
}
