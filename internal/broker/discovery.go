package broker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/hovde/shellyprov/internal/logging"
)

const (
	// ServiceType is the mDNS service type MQTT brokers advertise
	ServiceType = "_mqtt._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultPort is the standard plaintext MQTT port
	DefaultPort = 1883

	// DefaultBrowseTimeout is the default timeout for zeroconf browsing
	DefaultBrowseTimeout = 5 * time.Second

	// DefaultDialTimeout bounds the TCP reachability check
	DefaultDialTimeout = 3 * time.Second
)

// Broker is a discovered (or manually entered) MQTT broker endpoint
type Broker struct {
	// Host is the broker IP address or hostname
	Host string

	// Port is the broker TCP port
	Port int

	// Hostname is the mDNS hostname, when discovery produced one
	Hostname string

	// Method records how the broker was found ("mdns", "zeroconf",
	// "manual")
	Method string
}

// Address returns the host:port form of the broker endpoint
func (b Broker) Address() string {
	return net.JoinHostPort(b.Host, fmt.Sprintf("%d", b.Port))
}

// Discoverer locates an MQTT broker on the local network. Resolution of a
// well-known hostname is tried first (cheap, direct), then a zeroconf
// service browse.
type Discoverer struct {
	// BrowseTimeout bounds the zeroconf browse
	BrowseTimeout time.Duration

	resolver *net.Resolver
}

// NewDiscoverer creates a discoverer with default settings
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		BrowseTimeout: DefaultBrowseTimeout,
		resolver:      net.DefaultResolver,
	}
}

// Discover attempts to locate the broker, trying mDNS hostname resolution
// of the well-known name first, then a zeroconf service browse. Returns
// nil when nothing was found; manual entry is the caller's fallback.
func (d *Discoverer) Discover(ctx context.Context, hostname string) *Broker {
	if broker := d.tryHostname(ctx, hostname); broker != nil {
		return broker
	}
	if broker := d.tryBrowse(ctx); broker != nil {
		return broker
	}
	return nil
}

// tryHostname resolves "<hostname>.local" directly
func (d *Discoverer) tryHostname(ctx context.Context, hostname string) *Broker {
	if hostname == "" {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()

	addrs, err := d.resolver.LookupHost(lookupCtx, hostname+".local")
	if err != nil || len(addrs) == 0 {
		return nil
	}

	logging.Info("Broker resolved via mDNS hostname",
		zap.String("hostname", hostname),
		zap.String("ip", addrs[0]),
	)
	return &Broker{
		Host:     addrs[0],
		Port:     DefaultPort,
		Hostname: hostname,
		Method:   "mdns",
	}
}

// tryBrowse browses for the MQTT service and takes the first instance seen
func (d *Discoverer) tryBrowse(ctx context.Context) *Broker {
	browseCtx, cancel := context.WithTimeout(ctx, d.BrowseTimeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		logging.Debug("Failed to create mDNS resolver", zap.Error(err))
		return nil
	}

	entries := make(chan *zeroconf.ServiceEntry)
	brokerChan := make(chan *Broker, 1)

	go func() {
		for entry := range entries {
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			port := entry.Port
			if port == 0 {
				port = DefaultPort
			}
			select {
			case brokerChan <- &Broker{
				Host:     entry.AddrIPv4[0].String(),
				Port:     port,
				Hostname: entry.HostName,
				Method:   "zeroconf",
			}:
				cancel()
			default:
			}
		}
	}()

	if err := resolver.Browse(browseCtx, ServiceType, ServiceDomain, entries); err != nil {
		logging.Debug("Failed to browse for mDNS services", zap.Error(err))
		return nil
	}

	select {
	case broker := <-brokerChan:
		logging.Info("Broker found via zeroconf",
			zap.String("host", broker.Host),
			zap.Int("port", broker.Port),
		)
		return broker
	case <-browseCtx.Done():
		// One more non-blocking read: the browse goroutine may have
		// delivered just as the timeout hit
		select {
		case broker := <-brokerChan:
			return broker
		default:
			return nil
		}
	}
}

// Manual wraps an operator-entered address as a Broker
func Manual(host string, port int) *Broker {
	if port == 0 {
		port = DefaultPort
	}
	return &Broker{Host: host, Port: port, Method: "manual"}
}

// Reachable checks that a TCP connection to the broker endpoint can be
// established. This is a port-open probe, not an MQTT handshake.
func Reachable(host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
