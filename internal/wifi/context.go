package wifi

import (
	"time"

	"go.uber.org/zap"

	"github.com/hovde/shellyprov/internal/logging"
)

const (
	// DefaultRestoreAttempts is how many times Restore retries before
	// giving up with a warning
	DefaultRestoreAttempts = 3

	// restoreBackoffBase is the initial delay between restore attempts;
	// it doubles per attempt
	restoreBackoffBase = 2 * time.Second
)

// State records the host adapter association captured at the start of a
// batch. It is owned exclusively by Context and only ever restored to.
type State struct {
	// OriginalSSID is the network the host was on before any device-AP
	// association, "" when the host was not associated
	OriginalSSID string

	// Associated is true when the host had an association at capture time
	Associated bool
}

// Context owns the host's single WiFi radio for the duration of a
// provisioning batch. It captures the original association exactly once,
// performs the per-device AP switches, and restores the original network on
// every exit path. It is not safe for concurrent use; the radio is a
// non-reentrant resource and callers are strictly serial.
type Context struct {
	ctrl Controller

	state           State
	captured        bool
	restored        bool
	connectTimeout  time.Duration
	restoreAttempts int

	// restorePassword is the passphrase used when Restore has to rejoin a
	// network without a stored platform profile. Optional.
	restorePassword string
}

// NewContext creates a Context over the given controller
func NewContext(ctrl Controller) *Context {
	return &Context{
		ctrl:            ctrl,
		connectTimeout:  DefaultConnectTimeout,
		restoreAttempts: DefaultRestoreAttempts,
	}
}

// SetConnectTimeout overrides the association timeout bound
func (c *Context) SetConnectTimeout(timeout time.Duration) {
	c.connectTimeout = timeout
}

// SetRestorePassword supplies a passphrase for Restore to use when the
// platform has no stored profile for the original network
func (c *Context) SetRestorePassword(password string) {
	c.restorePassword = password
}

// Capture records the host's present association. It must be called before
// any device-AP connection and takes effect only once; repeated calls return
// the already-captured state. Fails with an adapter error when no WiFi
// interface is usable.
func (c *Context) Capture() (State, error) {
	if c.captured {
		return c.state, nil
	}

	ssid, err := c.ctrl.CurrentNetwork()
	if err != nil {
		if IsAdapterUnavailable(err) {
			return State{}, err
		}
		return State{}, NewAdapterError("could not read current association", err)
	}

	c.state = State{OriginalSSID: ssid, Associated: ssid != ""}
	c.captured = true
	c.restored = false

	logging.LogWiFiEvent("capture", ssid)
	return c.state, nil
}

// Captured reports whether the original association has been recorded
func (c *Context) Captured() bool {
	return c.captured
}

// Current returns the adapter's present association
func (c *Context) Current() (string, error) {
	return c.ctrl.CurrentNetwork()
}

// ConnectDeviceAP associates with a device's factory access point. Device
// APs are open, so no passphrase is sent. Any existing association is
// dropped first.
func (c *Context) ConnectDeviceAP(ssid string) error {
	return c.connect(ssid, "")
}

// ConnectTarget associates with the operator-specified target network
func (c *Context) ConnectTarget(ssid, password string) error {
	return c.connect(ssid, password)
}

func (c *Context) connect(ssid, password string) error {
	if current, err := c.ctrl.CurrentNetwork(); err == nil && current != "" {
		if err := c.ctrl.Disconnect(); err != nil {
			logging.Warn("Disconnect before association failed", zap.Error(err))
		}
	}

	logging.LogWiFiEvent("connect", ssid)
	if err := c.ctrl.Connect(ssid, password, c.connectTimeout); err != nil {
		return err
	}
	return nil
}

// Restore reconnects to the network recorded by Capture, retrying a bounded
// number of times with backoff. When the original state was "not associated"
// it disconnects instead. The returned error is always a restore warning,
// never fatal; callers log it and move on. Restore is a no-op before Capture
// and after a successful Restore.
func (c *Context) Restore() error {
	if !c.captured || c.restored {
		return nil
	}

	var lastErr error
	delay := restoreBackoffBase

	for attempt := 1; attempt <= c.restoreAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(delay)
			delay *= 2
		}

		if !c.state.Associated {
			lastErr = c.ctrl.Disconnect()
		} else {
			lastErr = c.ctrl.Connect(c.state.OriginalSSID, c.restorePassword, c.connectTimeout)
		}

		if lastErr == nil {
			c.restored = true
			logging.LogWiFiEvent("restore", c.state.OriginalSSID)
			return nil
		}

		logging.Warn("Restore attempt failed",
			zap.Int("attempt", attempt),
			zap.String("ssid", c.state.OriginalSSID),
			zap.Error(lastErr),
		)
	}

	// Mark restored anyway so a second Restore on the same batch does not
	// start the retry loop over
	c.restored = true
	return NewRestoreError(c.state.OriginalSSID, lastErr)
}
