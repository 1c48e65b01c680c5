// Package logging provides structured logging for the shellyprov tool.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used throughout the provisioning workflow. Logging is silent by
// default so that CLI output stays clean; set SHELLYPROV_LOG_LEVEL to enable.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (RPC calls, scan output parsing)
//   - Info: Normal operations (WiFi switches, step transitions, outcomes)
//   - Warn: Non-fatal issues (restore failures, skipped steps, retries)
//   - Error: Fatal issues (adapter unavailable, startup failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device provisioned",
//	    zap.String("device", "ShellyPlus1-A8032ABE54DC"),
//	    zap.String("assigned_name", "RCC-Device-001"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogWiFiEvent("connect_device_ap", ssid)
//	logging.LogDeviceStep(ssid, "config_mqtt", "success")
//	logging.LogOutcome(ssid, name, "succeeded", "")
//	logging.LogRPCCall(baseURL, "MQTT.SetConfig", err)
//
// Credentials (WiFi passphrases, broker passwords) are never logged.
//
// # Configuration
//
// Initialize logging at command startup:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
