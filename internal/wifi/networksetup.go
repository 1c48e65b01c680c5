package wifi

import (
	"strconv"
	"strings"
	"time"
)

// airportPath is Apple's private scanning utility; networksetup has no
// scan command of its own.
const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// networksetupController manages the WiFi adapter on macOS via
// `networksetup` plus the airport utility for scanning
type networksetupController struct {
	iface string
}

func newNetworksetupController() *networksetupController {
	c := &networksetupController{iface: "en0"}
	if out, err := runTool("networksetup", "-listallhardwareports"); err == nil {
		if iface := parseHardwarePorts(out); iface != "" {
			c.iface = iface
		}
	}
	return c
}

func (c *networksetupController) CurrentNetwork() (string, error) {
	out, err := runTool("networksetup", "-getairportnetwork", c.iface)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if strings.Contains(out, "You are not associated") {
		return "", nil
	}
	if idx := strings.Index(out, ":"); idx >= 0 {
		return strings.TrimSpace(out[idx+1:]), nil
	}
	return "", NewAdapterError("unexpected networksetup output", nil)
}

func (c *networksetupController) ScanNetworks() ([]Network, error) {
	out, err := runTool(airportPath, "-s")
	if err != nil {
		return nil, err
	}
	networks := parseAirportScan(out)
	sortBySignal(networks)
	return networks, nil
}

func (c *networksetupController) Connect(ssid, password string, timeout time.Duration) error {
	args := []string{"-setairportnetwork", c.iface, ssid}
	if password != "" {
		args = append(args, password)
	}
	out, err := runTool("networksetup", args...)
	if err != nil {
		return err
	}
	// networksetup exits zero even on bad passphrases; the failure shows
	// up in the output text instead
	if strings.Contains(out, "Could not find network") {
		return NewTimeoutError(ssid)
	}
	if strings.Contains(out, "Failed to join") {
		return NewAuthError(ssid)
	}
	return waitForAssociation(c, ssid, timeout)
}

func (c *networksetupController) Disconnect() error {
	// Power-cycling the adapter is the reliable disassociate on macOS
	if _, err := runTool("networksetup", "-setairportpower", c.iface, "off"); err != nil {
		return err
	}
	time.Sleep(1 * time.Second)
	_, err := runTool("networksetup", "-setairportpower", c.iface, "on")
	return err
}

// parseHardwarePorts finds the Wi-Fi device name in
// `networksetup -listallhardwareports` output
func parseHardwarePorts(out string) string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if strings.Contains(line, "Wi-Fi") || strings.Contains(line, "AirPort") {
			if i+1 < len(lines) && strings.Contains(lines[i+1], "Device:") {
				return strings.TrimSpace(strings.SplitN(lines[i+1], ":", 2)[1])
			}
		}
	}
	return ""
}

// parseAirportScan parses `airport -s` output. Columns are
// SSID BSSID RSSI CHANNEL HT CC SECURITY, with SSIDs possibly containing
// spaces, so the RSSI column (first negative integer) anchors the parse.
func parseAirportScan(out string) []Network {
	var networks []Network

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return networks
	}

	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		rssiIdx := -1
		for i, f := range fields {
			if strings.HasPrefix(f, "-") {
				if _, err := strconv.Atoi(f); err == nil {
					rssiIdx = i
					break
				}
			}
		}
		if rssiIdx < 1 {
			continue
		}

		rssi, _ := strconv.Atoi(fields[rssiIdx])
		n := Network{
			SSID:      strings.Join(fields[:rssiIdx-1], " "),
			BSSID:     fields[rssiIdx-1],
			SignalDBm: rssi,
			Security:  "Open",
		}
		if len(fields) > rssiIdx+3 {
			n.Security = fields[len(fields)-1]
		}
		if n.SSID != "" {
			networks = append(networks, n)
		}
	}
	return networks
}
