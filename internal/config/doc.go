// Package config manages persistent user configuration for shellyprov.
//
// Configuration is stored as a YAML file in the OS-appropriate config
// directory and holds the target network SSID, broker endpoint, the
// naming prefix with its monotonic sequence counter, and provisioning
// preferences. Passwords are never persisted: they are loaded from the
// environment (optionally via a .env file) or prompted at runtime, and
// held in memory only.
package config
