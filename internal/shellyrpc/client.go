package shellyrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hovde/shellyprov/internal/logging"
)

const (
	// DefaultAPAddress is the fixed IP Gen2 devices answer on in AP mode
	DefaultAPAddress = "192.168.33.1"

	// DefaultTimeout is the default per-call HTTP timeout
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retries after the first
	// attempt. Only transient transport failures are retried.
	DefaultMaxRetries = 1

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 1 * time.Second
)

// Client issues Gen2 JSON-RPC calls against one device at a known base
// address. It is stateless between calls; every call carries its own
// timeout and bounded retry.
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.33.1")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the number of retries after the first attempt for
	// transient transport failures
	MaxRetries int

	// RetryDelay is the delay between retry attempts
	RetryDelay time.Duration
}

// NewClient creates a client for a device at the given IP
func NewClient(ip string) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s", ip))
}

// NewClientWithURL creates a client with a full base URL
// (e.g., "http://192.168.33.1")
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// NewAPClient creates a client for a device in factory AP mode
func NewAPClient() *Client {
	return NewClient(DefaultAPAddress)
}

// SetTimeout sets the per-call HTTP timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// GetInfo retrieves the device identification record via the plain /shelly
// endpoint. Fails with an unreachable error when the device does not
// respond.
func (c *Client) GetInfo() (*DeviceInfo, error) {
	var info DeviceInfo
	err := c.withRetry("GetDeviceInfo", func() error {
		resp, err := c.HTTPClient.Get(c.BaseURL + "/shelly")
		if err != nil {
			return classifyTransportError("GetDeviceInfo", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return NewHTTPError("GetDeviceInfo", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyTransportError("GetDeviceInfo", err)
		}
		if err := json.Unmarshal(body, &info); err != nil {
			return NewParseError("GetDeviceInfo", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// SetMQTTConfig points the device at an MQTT broker. Idempotent; safe to
// re-issue with identical arguments. The topic prefix doubles as the
// device's identity on the broker.
func (c *Client) SetMQTTConfig(host string, port int, user, password, topicPrefix string) error {
	config := map[string]any{
		"enable": true,
		"server": fmt.Sprintf("%s:%d", host, port),
		"user":   user,
		"pass":   password,
	}
	if topicPrefix != "" {
		config["topic_prefix"] = topicPrefix
		config["client_id"] = topicPrefix
	}

	raw, err := c.rpcCall("MQTT.SetConfig", map[string]any{"config": config})
	if err != nil {
		return err
	}
	logRestartRequired("MQTT.SetConfig", raw)
	return nil
}

// DisableMQTT turns the device's broker connection off. Used to roll back a
// device that failed partway through configuration, so it never reports in
// under a half-applied identity.
func (c *Client) DisableMQTT() error {
	_, err := c.rpcCall("MQTT.SetConfig", map[string]any{
		"config": map[string]any{"enable": false},
	})
	return err
}

// SetWiFiConfig stages the station credentials for the target network and
// disables the factory AP. Idempotent; takes effect at the next reboot.
func (c *Client) SetWiFiConfig(ssid, password string) error {
	raw, err := c.rpcCall("WiFi.SetConfig", map[string]any{
		"config": map[string]any{
			"sta": map[string]any{
				"ssid":     ssid,
				"pass":     password,
				"enable":   true,
				"ipv4mode": "dhcp",
			},
			"ap": map[string]any{
				"enable": false,
			},
		},
	})
	if err != nil {
		return err
	}
	logRestartRequired("WiFi.SetConfig", raw)
	return nil
}

// SetCloudEnabled toggles the vendor cloud connection. Some models ship
// without the cloud component, so callers treat failure as non-fatal.
func (c *Client) SetCloudEnabled(enabled bool) error {
	_, err := c.rpcCall("Cloud.SetConfig", map[string]any{
		"config": map[string]any{"enable": enabled},
	})
	return err
}

// Rename sets the device's user-visible name. Idempotent.
func (c *Client) Rename(name string) error {
	_, err := c.rpcCall("Sys.SetConfig", map[string]any{
		"config": map[string]any{
			"device": map[string]any{"name": name},
		},
	})
	return err
}

// SetDiscoverable toggles the device's discoverability announcement
func (c *Client) SetDiscoverable(discoverable bool) error {
	_, err := c.rpcCall("Sys.SetConfig", map[string]any{
		"config": map[string]any{
			"device": map[string]any{"discoverable": discoverable},
		},
	})
	return err
}

// Reboot asks the device to restart so staged WiFi/MQTT settings take
// effect. Fire-and-forget: the device drops its AP shortly after
// acknowledging, so transport failures after the request went out are
// treated as success.
func (c *Client) Reboot() error {
	_, err := c.rpcCall("Shelly.Reboot", nil)
	if err != nil && !IsRejectedConfig(err) {
		// The AP often disappears before the response arrives
		logging.Debug("Reboot response not received (expected during reboot)")
		return nil
	}
	return err
}

// DisableAccessPoint turns the device's own AP off. Used during the
// follow-up reconnection after reboot; callers skip this step when the AP
// is already gone.
func (c *Client) DisableAccessPoint() error {
	_, err := c.rpcCall("WiFi.SetConfig", map[string]any{
		"config": map[string]any{
			"ap": map[string]any{"enable": false},
		},
	})
	return err
}

// FactoryReset wipes the device back to factory state. Used by the reset
// workflow against a device already on the target network, never against
// a factory AP.
func (c *Client) FactoryReset() error {
	_, err := c.rpcCall("Shelly.FactoryReset", nil)
	return err
}

// GetStatus retrieves the full device status as raw JSON
func (c *Client) GetStatus() (json.RawMessage, error) {
	return c.rpcCall("Shelly.GetStatus", nil)
}

// GetConfig retrieves the full device configuration as raw JSON
func (c *Client) GetConfig() (json.RawMessage, error) {
	return c.rpcCall("Shelly.GetConfig", nil)
}

// GetMQTTStatus reports whether the device has connected to its broker
func (c *Client) GetMQTTStatus() (*MQTTStatus, error) {
	raw, err := c.rpcCall("MQTT.GetStatus", nil)
	if err != nil {
		return nil, err
	}
	var status MQTTStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, NewParseError("MQTT.GetStatus", err)
	}
	return &status, nil
}

// GetWiFiStatus reports the device's station state
func (c *Client) GetWiFiStatus() (*WiFiStatus, error) {
	raw, err := c.rpcCall("WiFi.GetStatus", nil)
	if err != nil {
		return nil, err
	}
	var status WiFiStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, NewParseError("WiFi.GetStatus", err)
	}
	return &status, nil
}

// SetSwitch sets one switch channel's output. Handy for smoke-testing a
// freshly provisioned relay.
func (c *Client) SetSwitch(id int, on bool) error {
	_, err := c.rpcCall("Switch.Set", map[string]any{"id": id, "on": on})
	return err
}

// GetSwitchStatus reads one switch channel's state
func (c *Client) GetSwitchStatus(id int) (*SwitchStatus, error) {
	raw, err := c.rpcCall("Switch.GetStatus", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	var status SwitchStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, NewParseError("Switch.GetStatus", err)
	}
	return &status, nil
}

// CheckAPMode reports whether a device in factory AP mode is reachable at
// the default AP address
func CheckAPMode() bool {
	client := NewAPClient()
	_, err := client.GetInfo()
	return err == nil
}

// rpcCall performs one RPC method call with bounded retry. Methods without
// parameters go out as GET, parameterized calls as POST with a JSON body.
func (c *Client) rpcCall(method string, params map[string]any) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.withRetry(method, func() error {
		raw, err := c.rpcAttempt(method, params)
		if err != nil {
			return err
		}
		result = raw
		return nil
	})
	logging.LogRPCCall(c.BaseURL, method, err)
	return result, err
}

// rpcAttempt performs a single RPC request
func (c *Client) rpcAttempt(method string, params map[string]any) (json.RawMessage, error) {
	url := c.BaseURL + "/rpc/" + method

	var resp *http.Response
	var err error
	if params == nil {
		resp, err = c.HTTPClient.Get(url)
	} else {
		var body []byte
		body, err = json.Marshal(params)
		if err != nil {
			return nil, NewParseError(method, err)
		}
		resp, err = c.HTTPClient.Post(url, "application/json", bytes.NewReader(body))
	}
	if err != nil {
		return nil, classifyTransportError(method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(method, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(method, err)
	}

	// Responses arrive either bare or wrapped in a JSON-RPC envelope
	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewParseError(method, err)
	}
	if envelope.Error != nil {
		return nil, NewRejectedError(method, envelope.Error.Code, envelope.Error.Message)
	}
	if envelope.Result != nil {
		return envelope.Result, nil
	}
	return body, nil
}

// logRestartRequired notes when a SetConfig call reports that the new
// config only takes effect after a restart
func logRestartRequired(method string, raw json.RawMessage) {
	var result setConfigResult
	if err := json.Unmarshal(raw, &result); err == nil && result.RestartRequired {
		logging.Debug(method + " staged; takes effect at restart")
	}
}

// withRetry runs fn up to MaxRetries+1 times, retrying only transient
// transport failures. Config rejections and parse errors fail immediately.
func (c *Client) withRetry(method string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.RetryDelay)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
