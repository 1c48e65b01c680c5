// Shellyprov is a batch provisioning utility for Shelly Gen2 IoT devices.
//
// It scans for factory-fresh devices broadcasting their setup access
// points, joins each AP in turn over the host's WiFi radio, configures
// MQTT and the target network over the device's local JSON-RPC API,
// assigns a sequential name and reboots the device onto the target
// network. The original WiFi association is restored when the batch ends.
//
// Usage:
//
//	shellyprov [command] [flags]
//
// See 'shellyprov --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hovde/shellyprov/internal/logging"
	"github.com/hovde/shellyprov/internal/version"
)

func main() {
	logging.InitializeFromEnv()
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shellyprov",
	Short: "Shelly Gen2 Batch Provisioning Utility",
	Long: `A standalone utility for provisioning Shelly Gen2 IoT devices.

Discovers factory-fresh devices by their setup access points, configures
each one for your WiFi network and MQTT broker, assigns sequential names,
and verifies the devices come back up on the target network.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the provisioning workflow
		return runProvision(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shellyprov %s (commit: %s)\n", version.Version, version.Commit)
	},
}
