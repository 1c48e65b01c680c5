package wifi

import "testing"

const hardwarePortsOutput = `Hardware Port: Ethernet
Device: en1
Ethernet Address: aa:bb:cc:dd:ee:01

Hardware Port: Wi-Fi
Device: en0
Ethernet Address: aa:bb:cc:dd:ee:02

Hardware Port: Thunderbolt Bridge
Device: bridge0
Ethernet Address: aa:bb:cc:dd:ee:03
`

func TestParseHardwarePorts(t *testing.T) {
	if got := parseHardwarePorts(hardwarePortsOutput); got != "en0" {
		t.Errorf("parseHardwarePorts() = %q, want en0", got)
	}

	if got := parseHardwarePorts("Hardware Port: Ethernet\nDevice: en1\n"); got != "" {
		t.Errorf("parseHardwarePorts() without Wi-Fi port = %q, want \"\"", got)
	}
}

const airportScanOutput = `                            SSID BSSID             RSSI CHANNEL HT CC SECURITY (auth/unicast/group)
                         HomeNet 11:22:33:44:55:66 -52  36      Y  US WPA2(PSK/AES/AES)
        ShellyPlus1-A8032ABE54DC a8:03:2a:be:54:dc -41  6       Y  -- NONE
                  Coffee Shop 5G 22:33:44:55:66:77 -78  149     Y  US WPA2(PSK/AES/AES)
`

func TestParseAirportScan(t *testing.T) {
	networks := parseAirportScan(airportScanOutput)

	if len(networks) != 3 {
		t.Fatalf("parseAirportScan() returned %d networks, want 3", len(networks))
	}

	if networks[0].SSID != "HomeNet" {
		t.Errorf("networks[0].SSID = %q, want HomeNet", networks[0].SSID)
	}
	if networks[0].SignalDBm != -52 {
		t.Errorf("networks[0].SignalDBm = %d, want -52", networks[0].SignalDBm)
	}
	if networks[0].BSSID != "11:22:33:44:55:66" {
		t.Errorf("networks[0].BSSID = %q, want 11:22:33:44:55:66", networks[0].BSSID)
	}

	if networks[1].SSID != "ShellyPlus1-A8032ABE54DC" {
		t.Errorf("networks[1].SSID = %q, want ShellyPlus1-A8032ABE54DC", networks[1].SSID)
	}

	// SSIDs with spaces survive the RSSI-anchored parse
	if networks[2].SSID != "Coffee Shop 5G" {
		t.Errorf("networks[2].SSID = %q, want \"Coffee Shop 5G\"", networks[2].SSID)
	}
	if networks[2].SignalDBm != -78 {
		t.Errorf("networks[2].SignalDBm = %d, want -78", networks[2].SignalDBm)
	}
}

func TestParseAirportScanEmpty(t *testing.T) {
	if networks := parseAirportScan(""); len(networks) != 0 {
		t.Errorf("parseAirportScan(\"\") returned %d networks, want 0", len(networks))
	}
}
