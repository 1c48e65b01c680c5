package shellyrpc

import "encoding/json"

// DeviceInfo is the identification record returned by GET /shelly on any
// Gen2 device.
type DeviceInfo struct {
	// ID is the device identifier (e.g., "shellyplus1-a8032abe54dc")
	ID string `json:"id"`

	// MAC is the device MAC address (12 hex chars, no separators)
	MAC string `json:"mac"`

	// Model is the vendor model code (e.g., "SNSW-001X16EU")
	Model string `json:"model"`

	// Gen is the device generation (2 for Gen2+)
	Gen int `json:"gen"`

	// FirmwareID identifies the firmware build
	FirmwareID string `json:"fw_id"`

	// Version is the firmware version string
	Version string `json:"ver"`

	// App is the application name (e.g., "Plus1")
	App string `json:"app"`
}

// friendlyNames maps Gen2 application names to marketing names
var friendlyNames = map[string]string{
	"Plus1":   "Shelly Plus 1",
	"Plus1PM": "Shelly Plus 1PM",
	"Plus2PM": "Shelly Plus 2PM",
	"Pro1":    "Shelly Pro 1",
	"Pro1PM":  "Shelly Pro 1PM",
	"Pro2":    "Shelly Pro 2",
	"Pro2PM":  "Shelly Pro 2PM",
	"Pro4PM":  "Shelly Pro 4PM",
	"PlugS":   "Shelly Plug S",
	"Mini1":   "Shelly Mini 1",
}

// FriendlyName returns the marketing name for the device, falling back to
// the raw application name for models not in the table.
func (i DeviceInfo) FriendlyName() string {
	if name, ok := friendlyNames[i.App]; ok {
		return name
	}
	return i.App
}

// rpcResponse is the JSON-RPC envelope Gen2 devices wrap results in
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcError is the JSON-RPC error object
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// setConfigResult is the common result shape of the *.SetConfig methods
type setConfigResult struct {
	RestartRequired bool `json:"restart_required"`
}

// MQTTStatus reports the device's broker connection state
// (MQTT.GetStatus result).
type MQTTStatus struct {
	Connected bool `json:"connected"`
}

// WiFiStatus reports the device's station state (WiFi.GetStatus result)
type WiFiStatus struct {
	// Status is one of "disconnected", "connecting", "connected", "got ip"
	Status string `json:"status"`

	// SSID is the network the station is on, when connected
	SSID string `json:"ssid"`

	// StaIP is the station IP address, when one has been obtained
	StaIP string `json:"sta_ip"`
}

// SwitchStatus reports one switch channel's state (Switch.GetStatus result)
type SwitchStatus struct {
	ID     int  `json:"id"`
	Output bool `json:"output"`
}
