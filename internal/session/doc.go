// Package session journals provisioning batches to disk.
//
// Each batch gets a timestamped JSON file under the config directory.
// The journal is flushed after every device, so an interrupted batch
// still shows which devices completed and how. Records never contain
// credentials.
package session
