package provision

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/hovde/shellyprov/internal/logging"
)

const (
	// DefaultVerifyTimeout bounds the per-device post-join resolution;
	// devices need time to reboot and pick up a DHCP lease
	DefaultVerifyTimeout = 15 * time.Second

	// verifyPollInterval is the pause between resolution attempts
	verifyPollInterval = 2 * time.Second

	// shellyService is the mDNS service Gen2 devices advertise on the
	// network they join
	shellyService = "_shelly._tcp"

	// serviceDomain is the mDNS domain (typically "local.")
	serviceDomain = "local."
)

// hostResolver is the name-lookup capability the verifier uses.
// *net.Resolver satisfies it; tests substitute fakes.
type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// mdnsEntry is one discovered service instance, reduced to what
// verification matches on
type mdnsEntry struct {
	Instance string
	Hostname string
	IPs      []string
}

// Verifier confirms that freshly provisioned devices actually joined the
// target network. It runs after the batch, with the host back on its
// original network, and attempts to resolve each device's network identity
// within a bounded window.
//
// Verification failure never downgrades a Succeeded outcome - the device
// was configured correctly even if host-side resolution could not confirm
// it promptly.
type Verifier struct {
	// Timeout bounds the resolution window per device
	Timeout time.Duration

	resolver hostResolver
	browse   func(ctx context.Context) ([]mdnsEntry, error)
}

// NewVerifier creates a verifier with the default resolver and mDNS
// browser
func NewVerifier() *Verifier {
	return &Verifier{
		Timeout:  DefaultVerifyTimeout,
		resolver: net.DefaultResolver,
		browse:   browseShellyServices,
	}
}

// Verify annotates the Succeeded outcomes with the device's resolved
// address, or a could-not-confirm note. The input slice is not mutated;
// annotated copies come back in the same order.
func (v *Verifier) Verify(ctx context.Context, outcomes []Outcome) []Outcome {
	annotated := make([]Outcome, len(outcomes))
	copy(annotated, outcomes)

	for i := range annotated {
		if !annotated[i].Succeeded() {
			continue
		}
		v.verifyOne(ctx, &annotated[i])
	}
	return annotated
}

// verifyOne resolves one device within the verifier's timeout window
func (v *Verifier) verifyOne(ctx context.Context, outcome *Outcome) {
	deadline := time.Now().Add(v.Timeout)
	name := outcome.Target.AssignedName

	for {
		if ip := v.resolve(ctx, outcome); ip != "" {
			outcome.FinalIP = ip
			outcome.VerifyNote = fmt.Sprintf("resolved at %s", ip)
			logging.Info("Device verified on target network",
				zap.String("assigned_name", name),
				zap.String("ip", ip),
			)
			return
		}

		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
		time.Sleep(verifyPollInterval)
	}

	outcome.VerifyNote = "could not confirm join within verification window"
	logging.Warn("Device not confirmed on target network",
		zap.String("assigned_name", name),
	)
}

// resolve makes one attempt to find the device: assigned name first, then
// an mDNS browse matched against the device ID or MAC. Devices keep their
// factory mDNS hostname (e.g. shellyplus1-a8032abe54dc.local) even after a
// rename, so the browse match is the reliable path.
func (v *Verifier) resolve(ctx context.Context, outcome *Outcome) string {
	lookupCtx, cancel := context.WithTimeout(ctx, verifyPollInterval)
	defer cancel()

	if addrs, err := v.resolver.LookupHost(lookupCtx, outcome.Target.AssignedName+".local"); err == nil && len(addrs) > 0 {
		return addrs[0]
	}

	entries, err := v.browse(lookupCtx)
	if err != nil {
		logging.Debug("mDNS browse failed", zap.Error(err))
		return ""
	}

	deviceID := strings.ToLower(outcome.DeviceID)
	mac := strings.ToLower(outcome.Target.Device.MAC)

	for _, entry := range entries {
		host := strings.ToLower(entry.Hostname)
		instance := strings.ToLower(entry.Instance)

		match := (deviceID != "" && (strings.Contains(host, deviceID) || strings.Contains(instance, deviceID))) ||
			(mac != "" && (strings.Contains(host, mac) || strings.Contains(instance, mac)))
		if match && len(entry.IPs) > 0 {
			return entry.IPs[0]
		}
	}
	return ""
}

// browseShellyServices browses the Shelly mDNS service on the current
// network and collects every instance seen before the context ends
func browseShellyServices(ctx context.Context) ([]mdnsEntry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var found []mdnsEntry
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			e := mdnsEntry{
				Instance: entry.Instance,
				Hostname: entry.HostName,
			}
			for _, addr := range entry.AddrIPv4 {
				e.IPs = append(e.IPs, addr.String())
			}
			found = append(found, e)
		}
	}()

	if err := resolver.Browse(ctx, shellyService, serviceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done
	return found, nil
}
