package wifi

import (
	"go.uber.org/zap"

	"github.com/hovde/shellyprov/internal/logging"
)

// ScanDevices lists visible networks and returns the Shelly factory APs
// among them, strongest signal first.
func ScanDevices(ctrl Controller) ([]DiscoveredDevice, error) {
	networks, err := ctrl.ScanNetworks()
	if err != nil {
		return nil, err
	}

	var devices []DiscoveredDevice
	for _, n := range networks {
		if device, ok := ParseDevice(n); ok {
			devices = append(devices, device)
		}
	}

	logging.Debug("Shelly AP scan complete",
		zap.Int("networks", len(networks)),
		zap.Int("devices", len(devices)),
	)
	return devices, nil
}
