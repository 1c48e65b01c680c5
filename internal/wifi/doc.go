// Package wifi controls the host machine's WiFi adapter during provisioning.
//
// The adapter is a scarce, non-reentrant resource: the host has one radio,
// and provisioning repeatedly points it at device access points. Context
// models that as a scoped acquisition - the original association is captured
// exactly once per batch, every device-AP switch goes through the Context,
// and Restore puts the adapter back on every exit path.
//
// The actual radio control is behind the Controller interface, implemented
// by thin wrappers over the platform network tools:
//
//   - Windows: netsh wlan
//   - macOS:   networksetup (+ the airport utility for scanning)
//   - Linux:   nmcli
//
// The package also hosts the Shelly AP scanner, which filters scan results
// down to factory-mode devices ("<Model>-<MACSUFFIX>" SSIDs) and parses the
// model and MAC from the SSID.
package wifi
