package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for credentials. These are never written to
// the YAML registry; they live only in the process environment (optionally
// seeded from a .env file in the working directory).
const (
	EnvWiFiPassword = "SHELLYPROV_WIFI_PASSWORD"
	EnvMQTTPassword = "SHELLYPROV_MQTT_PASSWORD"
)

// Secrets holds credentials for a provisioning run. Held in memory only.
type Secrets struct {
	WiFiPassword string
	MQTTPassword string
}

// LoadSecrets reads credentials from the environment, seeding it from a
// .env file in the current directory when one exists. A missing .env file
// is not an error; a missing variable just leaves the field empty for the
// caller to prompt.
func LoadSecrets() Secrets {
	// Ignore the error: .env is optional and real env vars still apply
	_ = godotenv.Load()

	return Secrets{
		WiFiPassword: os.Getenv(EnvWiFiPassword),
		MQTTPassword: os.Getenv(EnvMQTTPassword),
	}
}

// HasWiFiPassword reports whether a target-network password is available.
func (s Secrets) HasWiFiPassword() bool {
	return s.WiFiPassword != ""
}
