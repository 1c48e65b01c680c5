package wifi

import (
	"fmt"
	"strings"
)

// Network represents one WiFi network visible to the host adapter
type Network struct {
	// SSID is the network name
	SSID string

	// SignalDBm is the signal strength in dBm (typically -30 to -90)
	SignalDBm int

	// Security is the advertised security mode (e.g., "Open", "WPA2-Personal")
	Security string

	// BSSID is the access point MAC, when the platform tool reports one
	BSSID string
}

// IsShellyAP reports whether the network looks like an unprovisioned
// Shelly Gen2 access point. Factory SSIDs have the form
// "<Model>-<MACSUFFIX>", e.g. "ShellyPlus1-A8032ABE54DC".
func (n Network) IsShellyAP() bool {
	return strings.HasPrefix(strings.ToLower(n.SSID), "shelly") &&
		strings.Contains(n.SSID, "-")
}

// DiscoveredDevice is one Shelly device found by scanning for factory-mode
// access points. It is immutable once produced by the scanner.
type DiscoveredDevice struct {
	// SSID is the device's factory AP name
	SSID string

	// RSSI is the signal strength of the AP in dBm
	RSSI int

	// Model is the human-readable model parsed from the SSID prefix
	Model string

	// MAC is the device MAC parsed from the SSID suffix (12 hex chars),
	// empty when the suffix does not look like a MAC
	MAC string
}

// String returns a short display form of the device
func (d DiscoveredDevice) String() string {
	if d.MAC != "" {
		return fmt.Sprintf("%s (%s, %ddBm)", d.MAC, d.Model, d.RSSI)
	}
	return fmt.Sprintf("%s (%s, %ddBm)", d.SSID, d.Model, d.RSSI)
}

// modelNames maps lowercase SSID model fragments to friendly model names.
// Longer fragments are listed first so "plus1pm" wins over "plus1".
var modelNames = []struct {
	fragment string
	name     string
}{
	{"plus1pm", "Plus 1PM"},
	{"plus2pm", "Plus 2PM"},
	{"plus1", "Plus 1"},
	{"pro4pm", "Pro 4PM"},
	{"pro2pm", "Pro 2PM"},
	{"pro1pm", "Pro 1PM"},
	{"pro1", "Pro 1"},
	{"plugs", "Plug S"},
	{"mini1", "Mini 1"},
}

// ParseDevice parses a scanned network into a DiscoveredDevice.
// Returns false when the network is not a Shelly factory AP.
func ParseDevice(n Network) (DiscoveredDevice, bool) {
	if !n.IsShellyAP() {
		return DiscoveredDevice{}, false
	}

	device := DiscoveredDevice{
		SSID:  n.SSID,
		RSSI:  n.SignalDBm,
		Model: "Unknown Model",
	}

	lower := strings.ToLower(n.SSID)
	for _, m := range modelNames {
		if strings.Contains(lower, m.fragment) {
			device.Model = m.name
			break
		}
	}

	// MAC is the last hyphen-separated part of the SSID
	parts := strings.Split(n.SSID, "-")
	if suffix := strings.ToUpper(parts[len(parts)-1]); isMAC(suffix) {
		device.MAC = suffix
	}

	return device, true
}

// isMAC reports whether s is 12 uppercase hex characters
func isMAC(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
