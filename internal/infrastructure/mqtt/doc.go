// Package mqtt provides broker connectivity for the cranelink gateway.
//
// This package manages:
//   - Single-shot connect attempts driven by the connectivity supervisor
//   - Channel name derivation from the device identity
//   - The presence wire contract (retained online/offline records + last will)
//   - Message publishing and subscription with bounded timeouts
//
// # Architecture
//
// The gateway owns exactly one broker connection. Unusually for a paho
// wrapper, auto-reconnect and connect-retry are disabled: the bridge's
// connectivity supervisor re-invokes Connect() every cycle, making the
// retry policy explicit, idempotent, and testable. Connection loss is
// observed via the connection-lost callback and repaired on the next
// cycle.
//
//	operator dashboard ↔ MQTT broker ↔ cranelink ↔ serial ↔ motion firmware
//
// # Presence
//
// The presence channel (crane/<id>/lwt) always holds one of two retained
// payloads. The offline record is registered as the last will, so the
// broker itself flips presence when the gateway dies without warning;
// the gateway publishes the online record after each successful connect
// and the offline record on graceful shutdown.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, "crane-1")
//	if err := client.Connect(); err != nil { ... }
//	defer client.Close()
//
//	ch := client.Channels()
//	client.Subscribe(ch.Command, 1, func(topic string, payload []byte) { ... })
//	client.Publish(ch.Response, []byte("ok"), 1, false)
package mqtt
