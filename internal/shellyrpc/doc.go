// Package shellyrpc is an HTTP client for the Shelly Gen2 JSON-RPC device
// API.
//
// Gen2 devices in factory AP mode answer at a fixed address
// (192.168.33.1) while the host is associated with the device's own access
// point. The client is stateless: every call targets that one base address,
// carries a short per-call timeout, and retries transient transport
// failures a bounded number of times. Configuration rejections are never
// retried - the device understood the request and said no.
//
// Provisioning uses a small slice of the RPC surface:
//
//	GET  /shelly               device identification
//	POST /rpc/MQTT.SetConfig   broker address, credentials, topic prefix
//	POST /rpc/WiFi.SetConfig   station credentials, AP disable
//	POST /rpc/Cloud.SetConfig  vendor cloud on/off
//	POST /rpc/Sys.SetConfig    device name, discoverability
//	GET  /rpc/Shelly.Reboot    apply staged settings
//
// Errors are classified into the DeviceError taxonomy (unreachable,
// timeout, rejected config, HTTP, parse) so callers can turn them into
// per-device provisioning outcomes without inspecting error strings.
package shellyrpc
