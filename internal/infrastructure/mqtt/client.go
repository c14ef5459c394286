package mqtt

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/portmodel/cranelink/internal/infrastructure/config"
)

// machineIDPath holds the host's stable unique identifier on Linux.
const machineIDPath = "/etc/machine-id"

// clientIDSuffixLen is how many machine-id characters go into the client ID.
const clientIDSuffixLen = 8

// Client wraps paho.mqtt.golang for the cranelink gateway.
//
// Unlike a long-lived service client, it performs no reconnection of its
// own: the connectivity supervisor calls Connect() every cycle and the
// call is a no-op while connected. The last will targeting the presence
// channel is registered with every connect attempt.
//
// Thread Safety:
//   - All methods are safe for concurrent use, but the gateway drives
//     the client from a single control loop by design.
type Client struct {
	client   pahomqtt.Client
	cfg      config.MQTTConfig
	channels Channels
	identity string
	clientID string

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// onConnectionLost is invoked when an established connection drops.
	onConnectionLost func(err error)
	callbackMu       sync.RWMutex

	// logger for handler panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on the paho delivery goroutine, in broker
// delivery order. They must hand the message off quickly; the bridge's
// handler only enqueues into its inbound queue.
type MessageHandler func(topic string, payload []byte)

// New creates a disconnected client for the given device identity.
//
// The client ID is the identity plus a hardware-derived suffix, so two
// identically-configured gateways cannot steal each other's broker
// session. Call Connect() to establish the connection.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - identity: Device identity (non-empty, validated by config)
//
// Returns:
//   - *Client: Client ready for Connect()
func New(cfg config.MQTTConfig, identity string) *Client {
	channels := NewChannels(identity)
	clientID := fmt.Sprintf("%s-%s", identity, hardwareSuffix())

	c := &Client{
		cfg:      cfg,
		channels: channels,
		identity: identity,
		clientID: clientID,
	}

	opts := buildClientOptions(cfg, clientID, channels, identity)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect attempts to establish the broker connection.
//
// No-op when already connected. On failure the client stays usable and
// the next call retries from scratch; the supervisor invokes this every
// cycle, so transient failures need no handling beyond the error return.
//
// Returns:
//   - error: ErrConnectionFailed (wrapped) if the attempt fails
func (c *Client) Connect() error {
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return nil
}

// handleConnectionLost is called by paho when an established connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onConnectionLost
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Close gracefully disconnects from the broker.
//
// It publishes the retained offline presence record first, so a clean
// shutdown flips presence without relying on the last will (which only
// covers abrupt disconnects).
//
// Returns:
//   - error: nil (disconnecting an already-closed client is not an error)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.channels.Presence, byte(c.cfg.QoS), true,
			PresencePayload(c.identity, false))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the broker connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Channels returns the channel set derived from the device identity.
func (c *Client) Channels() Channels {
	return c.channels
}

// ClientID returns the broker client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// SetOnConnectionLost sets a callback invoked when an established
// connection is lost. The error parameter describes the cause.
func (c *Client) SetOnConnectionLost(callback func(err error)) {
	c.callbackMu.Lock()
	c.onConnectionLost = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler panic logging.
// If not set, handler panics are silently swallowed.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		handler(msg.Topic(), msg.Payload())
	}
}

// hardwareSuffix returns a short stable identifier for this host.
//
// Prefers the machine-id; falls back to the hostname. The suffix only
// needs to disambiguate identically-configured gateways on one broker,
// not to be globally unique.
func hardwareSuffix() string {
	if data, err := os.ReadFile(machineIDPath); err == nil {
		id := strings.TrimSpace(string(data))
		if len(id) >= clientIDSuffixLen {
			return id[:clientIDSuffixLen]
		}
		if id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
