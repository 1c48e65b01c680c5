package wifi

import (
	"strconv"
	"strings"
	"time"
)

// nmcliController manages the WiFi adapter on Linux via NetworkManager's
// nmcli tool
type nmcliController struct{}

func (c *nmcliController) CurrentNetwork() (string, error) {
	out, err := runTool("nmcli", "-t", "-f", "ACTIVE,SSID", "dev", "wifi")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := splitEscaped(line, ':')
		if len(fields) >= 2 && fields[0] == "yes" {
			return fields[1], nil
		}
	}
	return "", nil
}

func (c *nmcliController) ScanNetworks() ([]Network, error) {
	// --rescan yes forces a fresh scan instead of the NM cache
	out, err := runTool("nmcli", "-t", "-f", "SSID,SIGNAL,SECURITY,BSSID",
		"dev", "wifi", "list", "--rescan", "yes")
	if err != nil {
		return nil, err
	}
	networks := parseNmcliScan(out)
	sortBySignal(networks)
	return networks, nil
}

func (c *nmcliController) Connect(ssid, password string, timeout time.Duration) error {
	args := []string{"dev", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	out, err := runTool("nmcli", args...)
	if err != nil {
		if strings.Contains(out, "Secrets were required") ||
			strings.Contains(out, "802-11-wireless-security") {
			return NewAuthError(ssid)
		}
		return err
	}
	return waitForAssociation(c, ssid, timeout)
}

func (c *nmcliController) Disconnect() error {
	iface, err := c.wifiInterface()
	if err != nil {
		return err
	}
	_, err = runTool("nmcli", "dev", "disconnect", iface)
	return err
}

// wifiInterface finds the first wifi-type device NetworkManager knows about
func (c *nmcliController) wifiInterface() (string, error) {
	out, err := runTool("nmcli", "-t", "-f", "DEVICE,TYPE", "dev")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := splitEscaped(line, ':')
		if len(fields) >= 2 && fields[1] == "wifi" {
			return fields[0], nil
		}
	}
	return "", NewAdapterError("no wifi device reported by nmcli", nil)
}

// parseNmcliScan parses terse nmcli wifi list output
// (SSID:SIGNAL:SECURITY:BSSID with nmcli's backslash escaping)
func parseNmcliScan(out string) []Network {
	var networks []Network
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitEscaped(line, ':')
		if len(fields) < 2 || fields[0] == "" {
			continue
		}

		n := Network{SSID: fields[0], Security: "Open"}
		if pct, err := strconv.Atoi(fields[1]); err == nil {
			n.SignalDBm = percentToDBm(pct)
		}
		if len(fields) > 2 && fields[2] != "" && fields[2] != "--" {
			n.Security = fields[2]
		}
		if len(fields) > 3 {
			n.BSSID = fields[3]
		}
		networks = append(networks, n)
	}
	return networks
}

// splitEscaped splits nmcli terse output on sep, honoring backslash escapes
// (BSSIDs arrive as AA\:BB\:CC\:DD\:EE\:FF)
func splitEscaped(s string, sep byte) []string {
	var fields []string
	var cur strings.Builder

	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == sep:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
