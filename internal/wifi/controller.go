package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultConnectTimeout is the default bound on a WiFi association attempt
	DefaultConnectTimeout = 15 * time.Second

	// associationPollInterval is how often the controller re-checks the
	// current association while waiting for a connect to complete
	associationPollInterval = 1 * time.Second

	// associationSettleDelay is a short grace period after the SSID shows up
	// as associated, letting DHCP finish before callers start talking
	associationSettleDelay = 2 * time.Second

	// commandTimeout bounds every invocation of the platform WiFi tool
	commandTimeout = 10 * time.Second
)

// Controller is the abstract WiFi-control capability consumed by Context and
// the scanner. Implementations shell out to the platform's network tool.
type Controller interface {
	// CurrentNetwork returns the SSID the adapter is associated with,
	// or "" when not associated. Returns an adapter error when no WiFi
	// interface is usable.
	CurrentNetwork() (string, error)

	// ScanNetworks lists the networks currently visible to the adapter
	ScanNetworks() ([]Network, error)

	// Connect associates with the given network and blocks until the
	// association is established or the timeout elapses
	Connect(ssid, password string, timeout time.Duration) error

	// Disconnect drops the current association, if any
	Disconnect() error
}

// NewController returns the Controller for the current platform.
// Returns an adapter error on platforms without a supported WiFi tool.
func NewController() (Controller, error) {
	switch runtime.GOOS {
	case "windows":
		return &netshController{}, nil
	case "darwin":
		return newNetworksetupController(), nil
	case "linux":
		return &nmcliController{}, nil
	default:
		return nil, NewAdapterError(
			fmt.Sprintf("WiFi control is not supported on %s", runtime.GOOS), nil)
	}
}

// runTool executes a platform network tool with a bounded timeout and
// returns its combined output. The tool's own failures come back as
// command errors; a missing binary is reported as an adapter error.
func runTool(name string, args ...string) (string, error) {
	return runToolWithTimeout(commandTimeout, name, args...)
}

func runToolWithTimeout(timeout time.Duration, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", NewAdapterError(fmt.Sprintf("%s not found", name), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, runErr := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", NewCommandError(fmt.Sprintf("%s timed out", name), nil)
	}
	if runErr != nil {
		return string(out), NewCommandError(
			fmt.Sprintf("%s %s failed", name, strings.Join(args, " ")), runErr)
	}
	return string(out), nil
}

// waitForAssociation polls the current association until it matches the
// requested SSID or the timeout elapses
func waitForAssociation(c Controller, ssid string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		current, err := c.CurrentNetwork()
		if err == nil && strings.EqualFold(current, ssid) {
			// Let DHCP settle before the caller starts talking
			time.Sleep(associationSettleDelay)
			return nil
		}
		time.Sleep(associationPollInterval)
	}
	return NewTimeoutError(ssid)
}

// sortBySignal orders networks strongest-first
func sortBySignal(networks []Network) {
	sort.SliceStable(networks, func(i, j int) bool {
		return networks[i].SignalDBm > networks[j].SignalDBm
	})
}

// percentToDBm converts a 0-100 signal quality percentage to an approximate
// dBm value. -30dBm maps to 100%, -90dBm to 0%.
func percentToDBm(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return -30 - (100-percent)*6/10
}
