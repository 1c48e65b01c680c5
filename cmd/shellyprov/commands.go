package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hovde/shellyprov/internal/broker"
	"github.com/hovde/shellyprov/internal/config"
	"github.com/hovde/shellyprov/internal/mqttverify"
	"github.com/hovde/shellyprov/internal/shellyrpc"
	"github.com/hovde/shellyprov/internal/ui"
	"github.com/hovde/shellyprov/internal/wifi"
)

// Shared command flags
var (
	brokerHost    string
	brokerPort    int
	mqttUsername  string
	listenSeconds int
	resetIP       string
	resetConfirm  bool
	statusFull    bool
	switchID      int
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(resetCmd)
}

// scanCmd lists Shelly setup access points in range
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Shelly device access points",
	Long: `Scan the WiFi neighborhood for factory-fresh Shelly devices.

Unprovisioned Shelly Gen2 devices broadcast an open access point named
after their model and MAC (e.g. ShellyPlus1-A8032ABE54DC). This command
lists every such AP in range, strongest signal first.`,
	Example: `  # List devices awaiting provisioning
  shellyprov scan`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctrl, err := wifi.NewController()
	if err != nil {
		return err
	}

	fmt.Println("Scanning for Shelly access points...")
	fmt.Println()

	devices, err := wifi.ScanDevices(ctrl)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No Shelly devices found.")
		fmt.Println()
		if shellyrpc.CheckAPMode() {
			fmt.Println("This host is already associated with a device access point.")
			fmt.Println("Run 'shellyprov provision' or reconnect to your own network first.")
			return nil
		}
		fmt.Println("Troubleshooting:")
		fmt.Println("  - Ensure devices are powered and factory-fresh (AP mode)")
		fmt.Println("  - Move closer: setup APs have limited range")
		fmt.Println("  - Already-provisioned devices stop broadcasting; use 'shellyprov reset' first")
		return nil
	}

	ssids := make([]string, len(devices))
	models := make([]string, len(devices))
	rssis := make([]int, len(devices))
	for i, d := range devices {
		ssids[i] = d.SSID
		models[i] = d.Model
		rssis[i] = d.RSSI
	}
	fmt.Println(ui.RenderDeviceTable(ssids, models, rssis))
	fmt.Printf("Found %d device(s). Run 'shellyprov provision' to configure them.\n", len(devices))
	return nil
}

// discoverCmd locates the MQTT broker on the current network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the MQTT broker on the current network",
	Long: `Locate the MQTT broker devices will report to.

Tries the configured mDNS hostname first, then browses for _mqtt._tcp
services, and finally falls back to the host configured with --broker.
The discovered endpoint is probed with a TCP connection.`,
	Example: `  # Discover via mDNS
  shellyprov discover

  # Check a known broker
  shellyprov discover --broker 192.168.1.10 --broker-port 1883`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&brokerHost, "broker", "", "Broker host or IP (skips discovery)")
	discoverCmd.Flags().IntVar(&brokerPort, "broker-port", broker.DefaultPort, "Broker port")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	result, err := resolveBroker(ctx, registry)
	if err != nil {
		return err
	}

	fmt.Printf("Broker: %s (via %s)\n", result.Address(), result.Method)

	if !broker.Reachable(result.Host, result.Port, broker.DefaultDialTimeout) {
		ui.PrintWarning("broker is not reachable on " + result.Address())
		return nil
	}
	fmt.Println("Broker is reachable.")
	return nil
}

// resolveBroker applies the flag > mDNS > config precedence shared by the
// discover and provision commands.
func resolveBroker(ctx context.Context, registry *config.Registry) (*broker.Broker, error) {
	if brokerHost != "" {
		return broker.Manual(brokerHost, brokerPort), nil
	}

	disc := broker.NewDiscoverer()
	mdnsName := ""
	if registry.Broker != nil {
		mdnsName = registry.Broker.MDNSName
	}
	if found := disc.Discover(ctx, mdnsName); found != nil {
		return found, nil
	}

	if registry.Broker != nil && registry.Broker.Host != "" {
		return broker.Manual(registry.Broker.Host, registry.Broker.Port), nil
	}
	return nil, fmt.Errorf("no broker found: mDNS discovery failed and none configured (use --broker)")
}

// verifyCmd listens on the broker for device announcements
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Listen for provisioned devices on the MQTT broker",
	Long: `Connect to the MQTT broker and listen for device announcements.

Subscribes to the Shelly announcement topics, requests an announce from
legacy devices, and reports every device heard within the listen window.
Use this after a provisioning batch to confirm devices are online.`,
	Example: `  # Listen for 30 seconds (default)
  shellyprov verify

  # Longer window against a specific broker
  shellyprov verify --broker 192.168.1.10 --listen 60`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&brokerHost, "broker", "", "Broker host or IP (skips discovery)")
	verifyCmd.Flags().IntVar(&brokerPort, "broker-port", broker.DefaultPort, "Broker port")
	verifyCmd.Flags().StringVar(&mqttUsername, "username", "", "MQTT username (overrides config)")
	verifyCmd.Flags().IntVar(&listenSeconds, "listen", 30, "Listen window in seconds")
}

func runVerify(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	secrets := config.LoadSecrets()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	target, err := resolveBroker(ctx, registry)
	if err != nil {
		return err
	}

	username := mqttUsername
	if username == "" && registry.Broker != nil {
		username = registry.Broker.Username
	}
	password := secrets.MQTTPassword
	if username != "" && password == "" {
		password, err = ui.PromptPassword("MQTT password for " + username)
		if err != nil {
			return err
		}
	}

	verifier := mqttverify.NewVerifier(target.Host, target.Port, username, password)
	if registry.Naming != nil {
		verifier.NamePrefix = registry.Naming.Prefix
	}

	reports, err := verifier.Listen(ctx, time.Duration(listenSeconds)*time.Second)
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		fmt.Println("No devices announced themselves.")
		return nil
	}

	fmt.Printf("Heard %d device(s):\n\n", len(reports))
	for _, r := range reports {
		fmt.Printf("  %-32s %-14s %-16s %s\n", r.ID, r.MAC, r.IP, r.Status)
	}
	return nil
}

// statusCmd reports a provisioned device's state over the target network
var statusCmd = &cobra.Command{
	Use:   "status <name-or-ip>",
	Short: "Show a provisioned device's WiFi and MQTT state",
	Long: `Query a device that is already on the target network.

Reports the device identity, its station state and its broker connection.
With --full the raw status and configuration documents are printed too.`,
	Example: `  # By assigned name
  shellyprov status shop-light-003

  # By IP, with the raw documents
  shellyprov status 192.168.1.57 --full`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFull, "full", false, "Print the raw status and config JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := shellyrpc.NewClient(deviceAddress(args[0]))

	info, err := client.GetInfo()
	if err != nil {
		return fmt.Errorf("cannot reach device %s: %s", args[0], shellyrpc.ShortMessage(err))
	}
	fmt.Printf("Device:   %s (%s, firmware %s)\n", info.ID, info.FriendlyName(), info.Version)

	if wifiStatus, err := client.GetWiFiStatus(); err != nil {
		ui.PrintWarning("WiFi status unavailable: " + shellyrpc.ShortMessage(err))
	} else {
		fmt.Printf("WiFi:     %s", wifiStatus.Status)
		if wifiStatus.SSID != "" {
			fmt.Printf(" (%s, %s)", wifiStatus.SSID, wifiStatus.StaIP)
		}
		fmt.Println()
	}

	if mqttStatus, err := client.GetMQTTStatus(); err != nil {
		ui.PrintWarning("MQTT status unavailable: " + shellyrpc.ShortMessage(err))
	} else if mqttStatus.Connected {
		fmt.Println("MQTT:     connected")
	} else {
		fmt.Println("MQTT:     not connected")
	}

	if !statusFull {
		return nil
	}

	rawStatus, err := client.GetStatus()
	if err != nil {
		return fmt.Errorf("status fetch failed: %s", shellyrpc.ShortMessage(err))
	}
	rawConfig, err := client.GetConfig()
	if err != nil {
		return fmt.Errorf("config fetch failed: %s", shellyrpc.ShortMessage(err))
	}
	fmt.Printf("\nStatus:\n%s\n\nConfig:\n%s\n", rawStatus, rawConfig)
	return nil
}

// switchCmd drives a relay channel, a quick smoke test for a freshly
// provisioned device
var switchCmd = &cobra.Command{
	Use:   "switch <name-or-ip> <on|off|show>",
	Short: "Toggle or read a device's switch channel",
	Long: `Drive one switch channel of a provisioned relay device.

Useful as a smoke test right after provisioning: if the relay clicks, the
device is alive on the target network.`,
	Example: `  # Turn the relay on
  shellyprov switch shop-light-003 on

  # Read the channel state
  shellyprov switch 192.168.1.57 show`,
	Args: cobra.ExactArgs(2),
	RunE: runSwitch,
}

func init() {
	switchCmd.Flags().IntVar(&switchID, "id", 0, "Switch channel ID")
}

func runSwitch(cmd *cobra.Command, args []string) error {
	client := shellyrpc.NewClient(deviceAddress(args[0]))

	switch args[1] {
	case "on", "off":
		if err := client.SetSwitch(switchID, args[1] == "on"); err != nil {
			return fmt.Errorf("switch set failed: %s", shellyrpc.ShortMessage(err))
		}
	case "show":
	default:
		return fmt.Errorf("unknown action %q (want on, off or show)", args[1])
	}

	status, err := client.GetSwitchStatus(switchID)
	if err != nil {
		return fmt.Errorf("switch status failed: %s", shellyrpc.ShortMessage(err))
	}
	state := "off"
	if status.Output {
		state = "on"
	}
	fmt.Printf("Switch %d: %s\n", status.ID, state)
	return nil
}

// resetCmd factory-resets a provisioned device over the target network
var resetCmd = &cobra.Command{
	Use:   "reset <name-or-ip>",
	Short: "Factory-reset a provisioned device",
	Long: `Factory-reset a device that is already on the target network.

The device is addressed by its assigned name (resolved as <name>.local)
or directly by IP. After the reset it reboots into AP mode and can be
provisioned again.`,
	Example: `  # Reset by assigned name
  shellyprov reset shop-light-003 --yes

  # Reset by IP
  shellyprov reset 192.168.1.57 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetIP, "ip", "", "Device IP (skips name resolution)")
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "Skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	addr := resetIP
	if addr == "" {
		addr = deviceAddress(args[0])
	}
	client := shellyrpc.NewClient(addr)

	info, err := client.GetInfo()
	if err != nil {
		return fmt.Errorf("cannot reach device %s: %s", args[0], shellyrpc.ShortMessage(err))
	}

	fmt.Printf("Device: %s (%s, firmware %s)\n", info.ID, info.FriendlyName(), info.Version)

	if !resetConfirm {
		if !ui.ConfirmBatch("factory reset", addr, map[string]string{info.ID: "FACTORY DEFAULTS"}) {
			return nil
		}
	}

	if err := client.FactoryReset(); err != nil {
		return fmt.Errorf("factory reset failed: %s", shellyrpc.ShortMessage(err))
	}

	fmt.Println("Factory reset issued. The device will reboot into AP mode.")
	return nil
}

// deviceAddress maps a user-supplied name or IP to a dialable host.
// Assigned names resolve via mDNS.
func deviceAddress(s string) string {
	if looksLikeIP(s) {
		return s
	}
	return s + ".local"
}

// looksLikeIP reports whether s is a dotted-quad address rather than a name.
func looksLikeIP(s string) bool {
	digits := 0
	dots := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return dots == 3 && digits > 0
}
