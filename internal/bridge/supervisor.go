package bridge

import (
	"context"
	"time"

	"github.com/portmodel/cranelink/internal/infrastructure/mqtt"
	"github.com/portmodel/cranelink/internal/journal"
	"github.com/portmodel/cranelink/internal/netlink"
)

// Default supervision parameters. A network attempt polls the link at
// defaultNetworkPoll until defaultNetworkTimeout elapses, then yields so
// the cycle can still pump the serial side.
const (
	defaultNetworkTimeout = 20 * time.Second
	defaultNetworkPoll    = 300 * time.Millisecond
)

// MessagingClient is the broker connection as the bridge sees it.
// Satisfied by mqtt.Client; test fakes implement it in-memory.
type MessagingClient interface {
	// Connect establishes the broker session. Must be a no-op while
	// connected; the supervisor calls it every cycle.
	Connect() error

	// IsConnected reports the current session state.
	IsConnected() bool

	// Publish sends one message.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic. Subscriptions do not
	// survive a reconnect; the supervisor re-subscribes after every
	// successful Connect.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// Supervisor owns the two-level connectivity ladder: first the network
// link, then the broker session on top of it. Both rungs are expressed
// as idempotent ensure operations that the bridge cycle calls
// unconditionally; when everything is already up they cost two cheap
// status checks.
//
// The supervisor is the only component that retries connectivity. The
// messaging client performs no reconnection of its own, which keeps
// retry policy in exactly one place.
type Supervisor struct {
	link      netlink.Link
	messaging MessagingClient
	channels  mqtt.Channels
	identity  string
	ssid      string
	password  string
	qos       byte

	timeout      time.Duration
	pollInterval time.Duration
	clock        Clock

	// onCommand is registered as the command channel handler after each
	// successful connect.
	onCommand func(topic string, payload []byte)

	// notify reports connectivity transitions to the owning bridge.
	notify func(kind, detail string)

	logger Logger

	// linkWasUp tracks the last observed link state for edge reporting.
	linkWasUp bool
}

// EnsureNetwork brings the network link up if it is down, blocking for
// at most the configured timeout. It is fail-soft: on timeout it
// returns false and the cycle proceeds, because the serial side must
// keep draining regardless of connectivity.
//
// When the link is already up this is a single status read.
func (s *Supervisor) EnsureNetwork(ctx context.Context) bool {
	if state, err := s.link.Status(); err == nil && state == netlink.StateUp {
		s.markLinkUp()
		return true
	}

	if s.linkWasUp {
		s.linkWasUp = false
		s.notify(journal.EventLinkDown, "")
	}

	if err := s.link.BeginStation(s.ssid, s.password); err != nil {
		s.logger.Debug("Network association attempt failed", "error", err)
	}

	deadline := s.clock.Now().Add(s.timeout)
	for {
		if state, err := s.link.Status(); err == nil && state == netlink.StateUp {
			s.markLinkUp()
			return true
		}
		if ctx.Err() != nil || !s.clock.Now().Before(deadline) {
			s.logger.Warn("Network link still down after attempt window",
				"timeout", s.timeout,
			)
			return false
		}
		s.clock.Sleep(s.pollInterval)
	}
}

// markLinkUp records an up observation, reporting the transition edge.
func (s *Supervisor) markLinkUp() {
	if !s.linkWasUp {
		s.linkWasUp = true
		s.notify(journal.EventLinkUp, "")
	}
}

// EnsureMessaging brings the broker session up if it is down. On a
// fresh connect it immediately publishes the retained online presence
// record and re-subscribes to the command channel, restoring the full
// session state the clean-session connect discarded.
//
// Returns true when the session is up on exit. Like EnsureNetwork it is
// fail-soft; a single failed attempt is retried by the next cycle, with
// pacing provided by the serial read timeout rather than a backoff.
func (s *Supervisor) EnsureMessaging(ctx context.Context) bool {
	if s.messaging.IsConnected() {
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	if err := s.messaging.Connect(); err != nil {
		s.logger.Debug("Broker connect attempt failed", "error", err)
		return false
	}
	s.notify(journal.EventBrokerConnected, "")

	if err := s.messaging.Publish(s.channels.Presence,
		mqtt.PresencePayload(s.identity, true), s.qos, true); err != nil {
		s.logger.Warn("Publishing online presence failed", "error", err)
	} else {
		s.notify(journal.EventPresenceOnline, "")
	}

	if err := s.messaging.Subscribe(s.channels.Command, s.qos, s.onCommand); err != nil {
		s.logger.Warn("Command channel subscribe failed",
			"channel", s.channels.Command,
			"error", err,
		)
	}

	return true
}
