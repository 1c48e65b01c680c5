package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "SHELLYPROV_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks SHELLYPROV_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	// If no level provided, check environment variable
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	// If still no level, use silent mode (nop logger)
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	// Customize encoder for better readability
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// InitializeFromEnv initializes the logger from the SHELLYPROV_LOG_LEVEL
// environment variable. This is the recommended way to initialize logging
// for CLI commands that want silent mode by default.
func InitializeFromEnv() error {
	return Initialize("")
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback to silent logger if not initialized
		// This ensures no unexpected log output in CLI commands
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogWiFiEvent logs a host WiFi adapter event (connect, disconnect, restore).
// Only the SSID is logged, never a passphrase.
func LogWiFiEvent(event string, ssid string) {
	Info("WiFi event",
		zap.String("event", event),
		zap.String("ssid", ssid),
	)
}

// LogDeviceStep logs a provisioning step transition for one device.
func LogDeviceStep(deviceSSID string, step string, status string) {
	Info("Provisioning step",
		zap.String("device", deviceSSID),
		zap.String("step", step),
		zap.String("status", status),
	)
}

// LogOutcome logs the terminal outcome of one device's provisioning attempt.
func LogOutcome(deviceSSID string, assignedName string, state string, detail string) {
	fields := []zap.Field{
		zap.String("device", deviceSSID),
		zap.String("assigned_name", assignedName),
		zap.String("state", state),
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	Info("Provisioning outcome", fields...)
}

// LogRPCCall logs a device RPC call at debug level.
func LogRPCCall(target string, method string, err error) {
	if err != nil {
		Debug("Device RPC call failed",
			zap.String("target", target),
			zap.String("method", method),
			zap.Error(err),
		)
		return
	}
	Debug("Device RPC call",
		zap.String("target", target),
		zap.String("method", method),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
