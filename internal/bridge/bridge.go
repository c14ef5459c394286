package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/portmodel/cranelink/internal/infrastructure/mqtt"
	"github.com/portmodel/cranelink/internal/journal"
	"github.com/portmodel/cranelink/internal/netlink"
	"github.com/portmodel/cranelink/internal/serial"
)

// defaultInboundQueue bounds commands buffered between the broker
// delivery goroutine and the bridge cycle. When full, delivery blocks;
// commands are never dropped or reordered.
const defaultInboundQueue = 32

// defaultReadChunk is the per-read serial buffer size.
const defaultReadChunk = 4096

// defaultTelemetryInterval is how often counters are flushed when
// telemetry is enabled.
const defaultTelemetryInterval = 30 * time.Second

// Logger is the logging surface the bridge needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// EventSink receives connectivity transition events. Satisfied by
// journal.Store; nil disables event recording.
type EventSink interface {
	Record(ctx context.Context, kind, detail string) error
}

// Telemetry receives operational metrics. Satisfied by influxdb.Client;
// nil disables telemetry.
type Telemetry interface {
	WriteBridgeCounters(deviceID string, counters map[string]uint64)
	WriteConnectivityEvent(deviceID, kind string)
}

// Message is one inbound command held in the queue between the broker
// delivery goroutine and the bridge cycle.
type Message struct {
	Topic   string
	Payload []byte
}

// Options configures a Bridge.
type Options struct {
	// Identity is the device identity; channel names derive from it.
	Identity string

	// Serial is the open peripheral port.
	Serial serial.Port

	// Link is the network link collaborator.
	Link netlink.Link

	// Messaging is the broker client, constructed but not connected.
	Messaging MessagingClient

	// SSID and Password are the station-mode credentials, handed to the
	// link on association attempts. Ignored by wired links.
	SSID     string
	Password string

	// QoS is applied to every publish and subscribe.
	QoS byte

	// LineCapacity is the framer buffer size; zero means default.
	LineCapacity int

	// InboundQueue is the command queue depth; zero means default.
	InboundQueue int

	// NetworkTimeout and NetworkPollInterval bound one network attempt;
	// zero means defaults.
	NetworkTimeout      time.Duration
	NetworkPollInterval time.Duration

	// Clock overrides the time source; nil means the real clock.
	Clock Clock

	// Logger is required.
	Logger Logger

	// Events records connectivity transitions; nil disables.
	Events EventSink

	// Telemetry receives counters and events; nil disables.
	Telemetry Telemetry

	// TelemetryInterval is the counter flush period; zero means default.
	TelemetryInterval time.Duration
}

// Bridge pumps bytes between the serial peripheral and the message
// broker. All of its state is confined to the goroutine running Run;
// the only concurrent touch point is the inbound queue, fed by the
// broker delivery goroutine and drained by the cycle.
type Bridge struct {
	identity  string
	channels  mqtt.Channels
	port      serial.Port
	messaging MessagingClient
	sup       *Supervisor
	qos       byte

	framer  *LineFramer
	inbound chan Message
	readBuf []byte

	counters      counters
	everConnected bool

	clock             Clock
	logger            Logger
	events            EventSink
	telemetry         Telemetry
	telemetryInterval time.Duration
	lastFlush         time.Time
}

// counters are the bridge's operational tallies, flushed to telemetry
// periodically and readable via Counters.
type counters struct {
	linesPublished    uint64
	commandsForwarded uint64
	publishFailures   uint64
	serialWriteErrors uint64
	reconnects        uint64
}

// New creates a Bridge from the given options.
//
// Parameters:
//   - opts: Collaborators and tuning; Identity, Serial, Link, Messaging
//     and Logger are required
//
// Returns:
//   - *Bridge: Ready for Run
//   - error: If a required option is missing
func New(opts Options) (*Bridge, error) {
	if opts.Identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if opts.Serial == nil {
		return nil, fmt.Errorf("serial port is required")
	}
	if opts.Link == nil {
		return nil, fmt.Errorf("network link is required")
	}
	if opts.Messaging == nil {
		return nil, fmt.Errorf("messaging client is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	queue := opts.InboundQueue
	if queue <= 0 {
		queue = defaultInboundQueue
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	timeout := opts.NetworkTimeout
	if timeout <= 0 {
		timeout = defaultNetworkTimeout
	}
	poll := opts.NetworkPollInterval
	if poll <= 0 {
		poll = defaultNetworkPoll
	}
	flushInterval := opts.TelemetryInterval
	if flushInterval <= 0 {
		flushInterval = defaultTelemetryInterval
	}

	b := &Bridge{
		identity:          opts.Identity,
		channels:          mqtt.NewChannels(opts.Identity),
		port:              opts.Serial,
		messaging:         opts.Messaging,
		qos:               opts.QoS,
		framer:            NewLineFramer(opts.LineCapacity),
		inbound:           make(chan Message, queue),
		readBuf:           make([]byte, defaultReadChunk),
		clock:             clock,
		logger:            opts.Logger,
		events:            opts.Events,
		telemetry:         opts.Telemetry,
		telemetryInterval: flushInterval,
		lastFlush:         clock.Now(),
	}

	b.sup = &Supervisor{
		link:         opts.Link,
		messaging:    opts.Messaging,
		channels:     b.channels,
		identity:     opts.Identity,
		ssid:         opts.SSID,
		password:     opts.Password,
		qos:          opts.QoS,
		timeout:      timeout,
		pollInterval: poll,
		clock:        clock,
		onCommand:    b.enqueue,
		notify:       b.noteEvent,
		logger:       opts.Logger,
	}

	return b, nil
}

// Channels returns the channel set the bridge operates on.
func (b *Bridge) Channels() mqtt.Channels {
	return b.channels
}

// Run drives the bridge until the context is cancelled.
//
// Each cycle ensures connectivity bottom-up, forwards queued commands
// to the peripheral, then drains the peripheral's output into the
// response channel. The serial read timeout paces the loop; there is no
// explicit sleep.
//
// Returns:
//   - error: nil on cancellation (shutdown is not an error)
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("Bridge started",
		"identity", b.identity,
		"command_channel", b.channels.Command,
		"response_channel", b.channels.Response,
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bridge stopping")
			return nil
		default:
		}
		b.cycle(ctx)
	}
}

// cycle is one pass of the bridge loop.
func (b *Bridge) cycle(ctx context.Context) {
	b.sup.EnsureNetwork(ctx)
	b.sup.EnsureMessaging(ctx)
	b.pumpInbound(ctx)
	b.drainSerial()
	b.maybeFlushCounters(ctx)
}

// enqueue is the subscription handler; it runs on the broker delivery
// goroutine and only hands the message to the cycle. The payload is
// copied because the queue outlives the delivery callback. A full queue
// blocks delivery rather than dropping, preserving command order.
func (b *Bridge) enqueue(topic string, payload []byte) {
	p := make([]byte, len(payload))
	copy(p, payload)
	b.inbound <- Message{Topic: topic, Payload: p}
}

// pumpInbound forwards all currently queued commands to the peripheral.
func (b *Bridge) pumpInbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.inbound:
			b.handleCommand(msg)
		default:
			return
		}
	}
}

// handleCommand writes one command to the peripheral. The payload goes
// out verbatim; a trailing newline is appended unless the payload
// already ends with one, so the firmware always sees a complete line.
// Messages from channels other than the command channel are ignored.
func (b *Bridge) handleCommand(msg Message) {
	if msg.Topic != b.channels.Command {
		return
	}

	if len(msg.Payload) > 0 {
		if _, err := b.port.Write(msg.Payload); err != nil {
			b.counters.serialWriteErrors++
			b.logger.Warn("Serial write failed", "error", err)
			return
		}
	}
	if len(msg.Payload) == 0 || msg.Payload[len(msg.Payload)-1] != '\n' {
		if _, err := b.port.Write([]byte{'\n'}); err != nil {
			b.counters.serialWriteErrors++
			b.logger.Warn("Serial write failed", "error", err)
			return
		}
	}

	b.counters.commandsForwarded++
	b.logger.Debug("Command forwarded", "bytes", len(msg.Payload))
}

// drainSerial reads currently available peripheral bytes, feeding them
// through the framer and publishing each completed line on the response
// channel, retain=false. Reads repeat only while they fill the whole
// chunk, so a chattering peripheral cannot monopolise the cycle.
func (b *Bridge) drainSerial() {
	for {
		n, err := b.port.Read(b.readBuf)
		if err != nil {
			b.logger.Warn("Serial read failed", "error", err)
			return
		}
		for _, c := range b.readBuf[:n] {
			line, ok := b.framer.Feed(c)
			if !ok {
				continue
			}
			b.publishLine(line)
		}
		if n < len(b.readBuf) {
			return
		}
	}
}

// publishLine sends one framed peripheral line to the response channel.
// Publish failure is counted and logged; the line is not retried, the
// same as output produced while the broker is down.
func (b *Bridge) publishLine(line string) {
	err := b.messaging.Publish(b.channels.Response, []byte(line), b.qos, false)
	if err != nil {
		b.counters.publishFailures++
		b.logger.Debug("Response publish failed", "error", err)
		return
	}
	b.counters.linesPublished++
}

// noteEvent handles a connectivity transition: log, journal, telemetry,
// and reconnect accounting.
func (b *Bridge) noteEvent(kind, detail string) {
	b.logger.Info("Connectivity event", "kind", kind, "detail", detail)

	if kind == journal.EventBrokerConnected {
		if b.everConnected {
			b.counters.reconnects++
		}
		b.everConnected = true
	}

	if b.events != nil {
		if err := b.events.Record(context.Background(), kind, detail); err != nil {
			b.logger.Warn("Journal record failed", "kind", kind, "error", err)
		}
	}
	if b.telemetry != nil {
		b.telemetry.WriteConnectivityEvent(b.identity, kind)
	}
}

// Counters returns a snapshot of the bridge's operational tallies.
// Must be called from the cycle goroutine (or after Run returns).
func (b *Bridge) Counters() map[string]uint64 {
	return map[string]uint64{
		"lines_published":     b.counters.linesPublished,
		"commands_forwarded":  b.counters.commandsForwarded,
		"publish_failures":    b.counters.publishFailures,
		"serial_write_errors": b.counters.serialWriteErrors,
		"reconnects":          b.counters.reconnects,
		"bytes_truncated":     b.framer.Dropped(),
	}
}

// maybeFlushCounters writes the counter snapshot to telemetry when the
// flush interval has elapsed.
func (b *Bridge) maybeFlushCounters(_ context.Context) {
	if b.telemetry == nil {
		return
	}
	now := b.clock.Now()
	if now.Sub(b.lastFlush) < b.telemetryInterval {
		return
	}
	b.lastFlush = now
	b.telemetry.WriteBridgeCounters(b.identity, b.Counters())
}
