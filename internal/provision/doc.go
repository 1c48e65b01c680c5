// Package provision is the provisioning orchestrator: it turns a batch of
// discovered factory-mode devices into configured clients of the target
// network and broker.
//
// Three pieces cooperate:
//
//   - Provisioner drives one device through an explicit state machine
//     (connect to the device AP, configure MQTT/WiFi/name, reboot,
//     best-effort AP disable), classifying every failure into a terminal
//     outcome state.
//   - Orchestrator runs targets strictly serially - the host has one WiFi
//     radio - capturing the original network once before any device work
//     and restoring it exactly once afterwards, regardless of how many
//     devices failed. A batch of N targets always yields N outcomes.
//   - Verifier runs after restoration, resolving each provisioned device's
//     identity on the target network. It annotates outcomes and never
//     downgrades a success.
//
// Failure isolation is the central invariant: a device-level error is
// captured into that device's Outcome and the loop continues. Only failing
// to capture the host's original WiFi state - before any device is
// touched - aborts a batch.
package provision
