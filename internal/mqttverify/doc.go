// Package mqttverify listens on the MQTT broker for device announcements.
//
// After a provisioning batch, devices reconnect on the target network and
// begin publishing to their configured broker. The verifier subscribes to
// the announcement topics (legacy shellies/# plus the Gen2 per-device
// online and events/rpc topics), asks legacy devices to announce, and
// merges everything it hears into a single report keyed by MAC or topic
// prefix. It is read-only: it never changes broker or device state.
package mqttverify
