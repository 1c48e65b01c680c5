// Package broker locates the MQTT broker devices will report to.
//
// Discovery tries the cheap paths in order: direct mDNS resolution of a
// well-known hostname, then a zeroconf browse for the _mqtt._tcp service.
// When both come up empty the operator enters an address manually. Before
// any provisioning begins the endpoint is probed with a plain TCP connect;
// the orchestrator only ever consumes a resolved {host, port} pair and
// that reachability bit.
package broker
