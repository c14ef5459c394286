package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/portmodel/cranelink/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for one connect attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection. The
	// broker's failure detector (which fires the last will) is bounded by
	// 1.5x this value.
	defaultKeepAlive = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from cranelink config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID (identity plus hardware disambiguator)
//   - Authentication credentials (if provided)
//   - Last will targeting the presence channel
//   - TLS configuration (if enabled)
//
// Paho's auto-reconnect and connect-retry are deliberately disabled:
// the connectivity supervisor is the sole retry authority, re-attempting
// Connect() each cycle. A second reconnect mechanism inside the client
// would break the ensure-operation idempotence contract.
func buildClientOptions(cfg config.MQTTConfig, clientID string, channels Channels, identity string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - the supervisor re-subscribes after every connect,
	// so broker-side session state would only mask ordering bugs.
	opts.SetCleanSession(true)

	// Reconnection is owned by the supervisor, not the library.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// In-order handler dispatch; the bridge relies on broker delivery
	// order surviving all the way to the serial peripheral.
	opts.SetOrderMatters(true)

	// Last will: the broker publishes the retained offline presence
	// record on this client's behalf if the connection drops without a
	// clean disconnect.
	qos := byte(cfg.QoS) // #nosec G115 -- validated 0..2 by config
	opts.SetBinaryWill(channels.Presence, PresencePayload(identity, false), qos, true)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}
