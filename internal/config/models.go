package config

import (
	"fmt"
	"time"
)

// Registry represents the entire user configuration file.
// This stores the target network, broker endpoint, naming scheme and
// provisioning preferences. Credentials are never stored here.
type Registry struct {
	Version      int           `yaml:"version"`
	Network      *NetworkPrefs `yaml:"network,omitempty"`
	Broker       *BrokerPrefs  `yaml:"broker,omitempty"`
	Naming       *NamingPrefs  `yaml:"naming,omitempty"`
	Provisioning *ProvPrefs    `yaml:"provisioning,omitempty"`
}

// NetworkPrefs describes the target WiFi network devices join after
// provisioning.
type NetworkPrefs struct {
	SSID string `yaml:"ssid"` // Target network name
	// Password is NEVER stored in config file for security reasons
}

// BrokerPrefs describes the MQTT broker devices report to.
type BrokerPrefs struct {
	Host        string `yaml:"host,omitempty"`      // Broker hostname or IP ("" means discover via mDNS)
	Port        int    `yaml:"port"`                // Broker port (default 1883)
	Username    string `yaml:"username,omitempty"`  // MQTT username
	MDNSName    string `yaml:"mdns_name,omitempty"` // Hostname to try before browsing (e.g. "mqttbroker")
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	// Password is NEVER stored in config file for security reasons
}

// NamingPrefs describes how assigned device names are generated.
type NamingPrefs struct {
	Prefix       string `yaml:"prefix"`        // Name prefix (e.g. "shop-light")
	NextSequence int    `yaml:"next_sequence"` // Next counter value, monotonically increasing
}

// ProvPrefs represents provisioning behavior preferences.
type ProvPrefs struct {
	DisableCloud     bool      `yaml:"disable_cloud"`      // Turn off the vendor cloud connection
	AttemptDisableAP bool      `yaml:"attempt_disable_ap"` // Try to disable the device AP after reboot
	ConnectTimeout   int       `yaml:"connect_timeout"`    // WiFi association timeout in seconds
	LastRun          time.Time `yaml:"last_run,omitempty"` // Timestamp of the most recent batch
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Broker: &BrokerPrefs{
			Port:     1883,
			MDNSName: "mqttbroker",
		},
		Naming: &NamingPrefs{
			Prefix:       "shelly",
			NextSequence: 1,
		},
		Provisioning: &ProvPrefs{
			DisableCloud:     true,
			AttemptDisableAP: true,
			ConnectTimeout:   15,
		},
	}
}

// NextName reserves and returns the next assigned device name, advancing
// the sequence counter. The caller is responsible for saving the registry
// so the counter survives the process.
func (r *Registry) NextName() string {
	if r.Naming == nil {
		r.Naming = &NamingPrefs{Prefix: "shelly", NextSequence: 1}
	}
	if r.Naming.NextSequence < 1 {
		r.Naming.NextSequence = 1
	}
	name := fmt.Sprintf("%s-%03d", r.Naming.Prefix, r.Naming.NextSequence)
	r.Naming.NextSequence++
	return name
}

// PeekName returns the name the next call to NextName would produce
// without advancing the counter.
func (r *Registry) PeekName() string {
	if r.Naming == nil {
		return "shelly-001"
	}
	seq := r.Naming.NextSequence
	if seq < 1 {
		seq = 1
	}
	return fmt.Sprintf("%s-%03d", r.Naming.Prefix, seq)
}

// MarkRun records the time of the most recent provisioning batch.
func (r *Registry) MarkRun() {
	if r.Provisioning == nil {
		r.Provisioning = &ProvPrefs{}
	}
	r.Provisioning.LastRun = time.Now()
}
