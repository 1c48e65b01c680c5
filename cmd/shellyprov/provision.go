package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hovde/shellyprov/internal/broker"
	"github.com/hovde/shellyprov/internal/config"
	"github.com/hovde/shellyprov/internal/provision"
	"github.com/hovde/shellyprov/internal/session"
	"github.com/hovde/shellyprov/internal/ui"
	"github.com/hovde/shellyprov/internal/wifi"
)

// Provision command flags
var (
	provAll       bool
	provSSIDs     []string
	provNetwork   string
	provPrefix    string
	provYes       bool
	provNoVerify  bool
	provKeepCloud bool
	provKeepAP    bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision discovered Shelly devices",
	Long: `Run the full provisioning workflow.

Scans for Shelly setup access points, lets you pick which devices to
provision, then configures each device in turn: MQTT broker, target WiFi,
an assigned sequential name, and a reboot onto the target network. The
host's original WiFi association is restored when the batch finishes,
then each device is verified on the target network.`,
	Example: `  # Interactive: scan, pick, confirm
  shellyprov provision

  # Everything in range, no picker
  shellyprov provision --all --yes

  # A single known device
  shellyprov provision --device-ssid ShellyPlus1-A8032ABE54DC`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().BoolVar(&provAll, "all", false, "Provision every device found (skip the picker)")
	provisionCmd.Flags().StringArrayVar(&provSSIDs, "device-ssid", nil, "Provision only this device AP (repeatable)")
	provisionCmd.Flags().StringVar(&provNetwork, "network", "", "Target WiFi SSID (overrides config)")
	provisionCmd.Flags().StringVar(&provPrefix, "prefix", "", "Device name prefix (overrides config)")
	provisionCmd.Flags().BoolVar(&provYes, "yes", false, "Skip the confirmation prompt")
	provisionCmd.Flags().BoolVar(&provNoVerify, "no-verify", false, "Skip post-batch verification")
	provisionCmd.Flags().BoolVar(&provKeepCloud, "keep-cloud", false, "Leave the vendor cloud connection enabled")
	provisionCmd.Flags().BoolVar(&provKeepAP, "keep-ap", false, "Leave the device access point enabled")
	provisionCmd.Flags().StringVar(&brokerHost, "broker", "", "Broker host or IP (skips discovery)")
	provisionCmd.Flags().IntVar(&brokerPort, "broker-port", broker.DefaultPort, "Broker port")
	provisionCmd.Flags().StringVar(&mqttUsername, "username", "", "MQTT username (overrides config)")

	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	secrets := config.LoadSecrets()

	if provPrefix != "" {
		if registry.Naming == nil {
			registry.Naming = &config.NamingPrefs{NextSequence: 1}
		}
		registry.Naming.Prefix = provPrefix
	}

	// Target network: flag > registry. The password comes from the
	// environment or a prompt, never from the registry.
	targetSSID := provNetwork
	if targetSSID == "" && registry.Network != nil {
		targetSSID = registry.Network.SSID
	}
	if targetSSID == "" {
		return fmt.Errorf("no target network configured (use --network or set network.ssid in the config file)")
	}

	// Broker resolution happens while we are still on the home network
	target, err := resolveBroker(ctx, registry)
	if err != nil {
		return err
	}
	if !broker.Reachable(target.Host, target.Port, broker.DefaultDialTimeout) {
		ui.PrintWarning(fmt.Sprintf("broker %s is not reachable; devices may fail to report in", target.Address()))
	}

	wifiPassword := secrets.WiFiPassword
	if wifiPassword == "" {
		wifiPassword, err = ui.PromptPassword("WiFi password for " + targetSSID)
		if err != nil {
			return err
		}
	}

	username := mqttUsername
	if username == "" && registry.Broker != nil {
		username = registry.Broker.Username
	}
	mqttPassword := secrets.MQTTPassword
	if username != "" && mqttPassword == "" {
		mqttPassword, err = ui.PromptPassword("MQTT password for " + username)
		if err != nil {
			return err
		}
	}

	// Scan and select devices
	ctrl, err := wifi.NewController()
	if err != nil {
		return err
	}

	fmt.Println("Scanning for Shelly access points...")
	devices, err := wifi.ScanDevices(ctrl)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	devices = filterBySSID(devices, provSSIDs)
	if len(devices) == 0 {
		fmt.Println("No Shelly devices found.")
		return nil
	}

	if !provAll && len(provSSIDs) == 0 {
		devices, err = ui.PickDevices(devices)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No devices selected.")
			return nil
		}
	}

	// Reserve names and build targets. The counter is saved before the
	// batch so interrupted runs never reuse a name.
	targets := make([]provision.Target, len(devices))
	assignments := make(map[string]string, len(devices))
	for i, dev := range devices {
		name := registry.NextName()
		assignments[dev.SSID] = name
		targets[i] = provision.Target{
			Device:       dev,
			AssignedName: name,
			WiFi:         provision.WiFiCredentials{SSID: targetSSID, Password: wifiPassword},
			Broker: provision.BrokerConfig{
				Host:     target.Host,
				Port:     target.Port,
				Username: username,
				Password: mqttPassword,
			},
		}
	}
	registry.MarkRun()
	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save naming counter: %w", err)
	}

	if !provYes && !ui.ConfirmBatch(targetSSID, target.Address(), assignments) {
		return nil
	}

	// Wire up the batch
	wifiCtx := wifi.NewContext(ctrl)
	wifiCtx.SetRestorePassword(wifiPassword)
	if registry.Provisioning != nil && registry.Provisioning.ConnectTimeout > 0 {
		wifiCtx.SetConnectTimeout(time.Duration(registry.Provisioning.ConnectTimeout) * time.Second)
	}

	orch := provision.NewOrchestrator(wifiCtx, provision.NewDeviceClientFactory())
	prov := orch.Provisioner()
	prov.DisableCloud = !provKeepCloud
	prov.AttemptDisableAP = !provKeepAP
	if registry.Provisioning != nil {
		if !provKeepCloud {
			prov.DisableCloud = registry.Provisioning.DisableCloud
		}
		if !provKeepAP {
			prov.AttemptDisableAP = registry.Provisioning.AttemptDisableAP
		}
	}

	sess := session.New(targetSSID, target.Host, target.Port)
	orch.Checkpoint = sess.Append
	orch.SetEvents(progressEvents())

	outcomes, runErr := orch.Run(ctx, targets)
	if runErr != nil && len(outcomes) == 0 {
		return runErr
	}
	if runErr != nil {
		ui.PrintWarning(fmt.Sprintf("batch interrupted: %v", runErr))
	}

	// Verification runs on the restored original network
	if !provNoVerify && runErr == nil {
		fmt.Println("Verifying devices on the target network...")
		verifier := provision.NewVerifier()
		outcomes = verifier.Verify(ctx, outcomes)
		if err := sess.UpdateVerification(outcomes); err != nil {
			ui.PrintWarning(fmt.Sprintf("session update failed: %v", err))
		}
	}

	if err := sess.Finish(); err != nil {
		ui.PrintWarning(fmt.Sprintf("session save failed: %v", err))
	}

	fmt.Println()
	fmt.Println(ui.RenderBatchSummary(outcomes))
	fmt.Println()
	if path := sess.Path(); path != "" {
		fmt.Printf("Session log: %s\n", path)
	}
	return nil
}

// progressEvents returns the Events wiring that renders per-device step
// progress in place.
func progressEvents() provision.Events {
	var current *ui.DeviceProgress
	painted := false

	repaint := func() {
		if current == nil {
			return
		}
		if painted {
			// Move the cursor back to the top of the block
			fmt.Printf("\033[%dA", current.StepLineCount())
		}
		fmt.Print(current.Render())
		painted = true
	}

	return provision.Events{
		DeviceStarted: func(index, total int, target provision.Target) {
			label := fmt.Sprintf("Provisioning %s → %s (%d/%d)",
				target.Device.SSID, target.AssignedName, index+1, total)
			current = ui.NewDeviceProgress(label)
			painted = false
			fmt.Println()
			repaint()
		},
		StepChanged: func(target provision.Target, step provision.Step, status provision.StepStatus, note string) {
			if current == nil {
				return
			}
			current.Update(step, status, note)
			repaint()
		},
		DeviceFinished: func(index int, outcome provision.Outcome) {
			if outcome.Succeeded() {
				fmt.Println(ui.StepCompleteStyle.Render("  " + ui.SuccessMarker + " " + outcome.Target.AssignedName))
			} else {
				fmt.Println(ui.ErrorTitleStyle.Render("  " + ui.FailureMarker + " " + outcome.State.String() + ": " + outcome.ErrorDetail))
			}
			current = nil
			painted = false
		},
		RestoreFailed: func(err error) {
			ui.PrintWarning(fmt.Sprintf("could not restore original WiFi network: %v - reconnect manually", err))
		},
	}
}

// filterBySSID keeps only the devices named by --device-ssid; with no
// filter everything passes.
func filterBySSID(devices []wifi.DiscoveredDevice, ssids []string) []wifi.DiscoveredDevice {
	if len(ssids) == 0 {
		return devices
	}
	want := make(map[string]bool, len(ssids))
	for _, s := range ssids {
		want[strings.ToLower(s)] = true
	}
	var kept []wifi.DiscoveredDevice
	for _, d := range devices {
		if want[strings.ToLower(d.SSID)] {
			kept = append(kept, d)
		}
	}
	return kept
}
