package wifi

import (
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"time"
)

// netshController manages the WiFi adapter on Windows via `netsh wlan`
type netshController struct{}

func (c *netshController) CurrentNetwork() (string, error) {
	out, err := runTool("netsh", "wlan", "show", "interfaces")
	if err != nil {
		return "", err
	}
	ssid, ok := parseNetshInterfaces(out)
	if !ok {
		return "", NewAdapterError("no wireless interface reported by netsh", nil)
	}
	return ssid, nil
}

func (c *netshController) ScanNetworks() ([]Network, error) {
	out, err := runTool("netsh", "wlan", "show", "networks", "mode=bssid")
	if err != nil {
		return nil, err
	}
	networks := parseNetshNetworks(out)
	sortBySignal(networks)
	return networks, nil
}

func (c *netshController) Connect(ssid, password string, timeout time.Duration) error {
	// Try an existing profile first
	out, err := runTool("netsh", "wlan", "connect", "name="+ssid)
	if err != nil || strings.Contains(out, "is not found") {
		if err := c.addProfile(ssid, password); err != nil {
			return err
		}
		if _, err := runTool("netsh", "wlan", "connect", "name="+ssid); err != nil {
			return err
		}
	}
	return waitForAssociation(c, ssid, timeout)
}

func (c *netshController) Disconnect() error {
	_, err := runTool("netsh", "wlan", "disconnect")
	return err
}

// addProfile installs a temporary WLAN profile so netsh can connect to a
// network it has never seen. Open networks get an open-auth profile,
// everything else WPA2-PSK.
func (c *netshController) addProfile(ssid, password string) error {
	xml := netshProfileXML(ssid, password)

	f, err := os.CreateTemp("", "wlanprofile-*.xml")
	if err != nil {
		return NewCommandError("failed to create profile file", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.WriteString(xml); err != nil {
		_ = f.Close()
		return NewCommandError("failed to write profile file", err)
	}
	if err := f.Close(); err != nil {
		return NewCommandError("failed to write profile file", err)
	}

	_, err = runTool("netsh", "wlan", "add", "profile", "filename="+path)
	return err
}

// parseNetshInterfaces extracts the associated SSID from
// `netsh wlan show interfaces` output. The bool result is false when no
// wireless interface section is present at all.
func parseNetshInterfaces(out string) (string, bool) {
	sawInterface := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Name") {
			sawInterface = true
		}
		// The SSID line, not the BSSID line
		if strings.HasPrefix(line, "SSID") && !strings.Contains(line, "BSSID") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1]), true
			}
		}
	}
	return "", sawInterface
}

// parseNetshNetworks parses `netsh wlan show networks mode=bssid` output
func parseNetshNetworks(out string) []Network {
	var networks []Network
	var current *Network

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "SSID") && !strings.Contains(line, "BSSID"):
			if current != nil && current.SSID != "" {
				networks = append(networks, *current)
			}
			ssid := ""
			if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
				ssid = strings.TrimSpace(parts[1])
			}
			current = &Network{SSID: ssid, Security: "Open"}

		case current == nil:
			// Header lines before the first SSID

		case strings.HasPrefix(line, "Signal"):
			if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
				pctStr := strings.TrimSuffix(strings.TrimSpace(parts[1]), "%")
				if pct, err := strconv.Atoi(pctStr); err == nil {
					current.SignalDBm = percentToDBm(pct)
				}
			}

		case strings.HasPrefix(line, "Authentication"):
			if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
				current.Security = strings.TrimSpace(parts[1])
			}

		case strings.HasPrefix(line, "BSSID"):
			if parts := strings.SplitN(line, ":", 2); len(parts) == 2 && current.BSSID == "" {
				current.BSSID = strings.TrimSpace(parts[1])
			}
		}
	}

	if current != nil && current.SSID != "" {
		networks = append(networks, *current)
	}
	return networks
}

// netshProfileXML builds the WLAN profile XML netsh needs for a new network.
// SSIDs and passphrases may contain XML metacharacters, so both are escaped.
func netshProfileXML(ssid, password string) string {
	ssid = html.EscapeString(ssid)

	security := `<authEncryption>
                <authentication>open</authentication>
                <encryption>none</encryption>
                <useOneX>false</useOneX>
            </authEncryption>`
	if password != "" {
		security = fmt.Sprintf(`<authEncryption>
                <authentication>WPA2PSK</authentication>
                <encryption>AES</encryption>
                <useOneX>false</useOneX>
            </authEncryption>
            <sharedKey>
                <keyType>passPhrase</keyType>
                <protected>false</protected>
                <keyMaterial>%s</keyMaterial>
            </sharedKey>`, html.EscapeString(password))
	}

	return fmt.Sprintf(`<?xml version="1.0"?>
<WLANProfile xmlns="http://www.microsoft.com/networking/WLAN/profile/v1">
    <name>%s</name>
    <SSIDConfig>
        <SSID>
            <name>%s</name>
        </SSID>
    </SSIDConfig>
    <connectionType>ESS</connectionType>
    <connectionMode>auto</connectionMode>
    <MSM>
        <security>
            %s
        </security>
    </MSM>
</WLANProfile>`, ssid, ssid, security)
}
