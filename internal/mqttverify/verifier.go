package mqttverify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/hovde/shellyprov/internal/logging"
)

const (
	// DefaultListenWindow is how long the verifier collects announcements
	DefaultListenWindow = 30 * time.Second

	// connectTimeout bounds the broker connection attempt
	connectTimeout = 5 * time.Second
)

// subscriptions are the topics Gen2 devices (and the legacy announce
// convention) publish their presence on
var subscriptions = []string{
	"shellies/#",
	"+/online",
	"+/announce",
	"+/events/rpc",
}

// DeviceReport is one device heard announcing itself on the broker
type DeviceReport struct {
	// ID is the device's topic prefix (the assigned name after
	// provisioning)
	ID string `json:"id"`

	// MAC is the device MAC when the announcement carried one
	MAC string `json:"mac"`

	// IP is the device's address when the announcement carried one
	IP string `json:"ip"`

	// Model is the reported model, when known
	Model string `json:"model"`

	// Status is the last seen presence state (e.g., "true", "online")
	Status string `json:"status"`
}

// announcePayload is the JSON body of a legacy /announce message
type announcePayload struct {
	ID    string `json:"id"`
	MAC   string `json:"mac"`
	IP    string `json:"ip"`
	Model string `json:"model"`
}

// rpcEventPayload is the envelope of a Gen2 events/rpc message; src names
// the emitting device
type rpcEventPayload struct {
	Src string `json:"src"`
}

// Verifier connects to the broker and listens for device announcements.
// It answers the operator's "did my devices actually show up" question
// after a provisioning batch.
type Verifier struct {
	host     string
	port     int
	username string
	password string

	// NamePrefix, when set, makes merged reports prefer IDs carrying the
	// assigned-name prefix over factory IDs
	NamePrefix string

	mu      sync.Mutex
	reports []DeviceReport
}

// NewVerifier creates a verifier for the given broker endpoint
func NewVerifier(host string, port int, username, password string) *Verifier {
	return &Verifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

// Listen connects, subscribes to the announcement topics, requests an
// announce from legacy devices, and collects reports for the given window
// (or until the context ends). Returns the merged, sorted device list.
func (v *Verifier) Listen(ctx context.Context, window time.Duration) ([]DeviceReport, error) {
	if window <= 0 {
		window = DefaultListenWindow
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", v.host, v.port)).
		SetClientID(fmt.Sprintf("shellyprov-verify-%d", time.Now().Unix())).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false)
	if v.username != "" {
		opts.SetUsername(v.username)
		opts.SetPassword(v.password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("broker connection timed out (%s:%d)", v.host, v.port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker connection failed: %w", err)
	}
	defer client.Disconnect(250)

	for _, topic := range subscriptions {
		if token := client.Subscribe(topic, 0, v.onMessage); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("subscribe %s failed: %w", topic, token.Error())
		}
	}

	// Legacy devices announce on request; Gen2 devices publish events
	// on their own
	client.Publish("shellies/command", 0, false, "announce")

	logging.Info("Listening for device announcements",
		zap.String("broker", fmt.Sprintf("%s:%d", v.host, v.port)),
		zap.Duration("window", window),
	)

	select {
	case <-time.After(window):
	case <-ctx.Done():
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	result := make([]DeviceReport, len(v.reports))
	copy(result, v.reports)
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// onMessage classifies an incoming message by topic shape and merges the
// device it describes into the report list
func (v *Verifier) onMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	logging.Debug("MQTT message",
		zap.String("topic", topic),
		zap.Int("bytes", len(payload)),
	)

	switch {
	case strings.HasSuffix(topic, "/announce"):
		var ann announcePayload
		if err := json.Unmarshal(payload, &ann); err != nil {
			return
		}
		v.merge(DeviceReport{ID: ann.ID, MAC: normalizeMAC(ann.MAC), IP: ann.IP, Model: ann.Model, Status: "online"})

	case strings.HasSuffix(topic, "/online"):
		prefix := strings.SplitN(topic, "/", 2)[0]
		v.merge(DeviceReport{ID: prefix, Status: string(payload)})

	case strings.HasSuffix(topic, "/events/rpc"):
		prefix := strings.SplitN(topic, "/", 2)[0]
		var event rpcEventPayload
		mac := ""
		if err := json.Unmarshal(payload, &event); err == nil {
			mac = macFromSource(event.Src)
		}
		v.merge(DeviceReport{ID: prefix, MAC: mac, Model: "Gen2 Device", Status: "online"})
	}
}

// merge folds a report into the list, matching on MAC or ID. IDs carrying
// the assigned-name prefix win over factory IDs; concrete fields win over
// placeholders.
func (v *Verifier) merge(report DeviceReport) {
	if report.ID == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.reports {
		existing := &v.reports[i]

		macMatch := report.MAC != "" && existing.MAC != "" && report.MAC == existing.MAC
		idMatch := report.ID == existing.ID
		if !macMatch && !idMatch {
			continue
		}

		if v.NamePrefix != "" && strings.HasPrefix(report.ID, v.NamePrefix) {
			existing.ID = report.ID
		}
		if report.IP != "" {
			existing.IP = report.IP
		}
		if report.Model != "" && existing.Model == "" {
			existing.Model = report.Model
		}
		if report.MAC != "" {
			existing.MAC = report.MAC
		}
		if report.Status != "" {
			existing.Status = report.Status
		}
		return
	}

	v.reports = append(v.reports, report)
}

// macFromSource extracts the 12-hex MAC suffix from a Gen2 source ID like
// "shellyplus1-a8032abe54dc". Returns "" when the suffix doesn't look
// like a MAC.
func macFromSource(src string) string {
	idx := strings.LastIndex(src, "-")
	if idx < 0 {
		return ""
	}
	return normalizeMAC(src[idx+1:])
}

// normalizeMAC uppercases a MAC and strips separators; returns "" for
// anything that isn't 12 hex chars afterwards
func normalizeMAC(mac string) string {
	cleaned := strings.ToUpper(strings.NewReplacer(":", "", "-", "").Replace(mac))
	if len(cleaned) != 12 {
		return ""
	}
	for _, c := range cleaned {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return ""
		}
	}
	return cleaned
}
