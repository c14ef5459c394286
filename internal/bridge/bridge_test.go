package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/portmodel/cranelink/internal/netlink"
)

// newTestBridge builds a Bridge over fakes with a wired network link
// (always up), returning the bridge plus its collaborators.
func newTestBridge(t *testing.T) (*Bridge, *fakeMessaging, *fakePort) {
	t.Helper()
	messaging := &fakeMessaging{}
	port := &fakePort{}
	b, err := New(Options{
		Identity:  "crane-1",
		Serial:    port,
		Link:      netlink.Wired{},
		Messaging: messaging,
		QoS:       1,
		Clock:     newFakeClock(),
		Logger:    nopLogger{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b, messaging, port
}

func TestNewRequiredOptions(t *testing.T) {
	base := func() Options {
		return Options{
			Identity:  "crane-1",
			Serial:    &fakePort{},
			Link:      netlink.Wired{},
			Messaging: &fakeMessaging{},
			Logger:    nopLogger{},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing identity", func(o *Options) { o.Identity = "" }},
		{"missing serial", func(o *Options) { o.Serial = nil }},
		{"missing link", func(o *Options) { o.Link = nil }},
		{"missing messaging", func(o *Options) { o.Messaging = nil }},
		{"missing logger", func(o *Options) { o.Logger = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base()
			tt.mutate(&opts)
			if _, err := New(opts); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}

	if _, err := New(base()); err != nil {
		t.Errorf("New() with complete options error = %v", err)
	}
}

func TestChannelsDerivedFromIdentity(t *testing.T) {
	b, _, _ := newTestBridge(t)
	ch := b.Channels()
	if ch.Command != "crane/crane-1/cmd" ||
		ch.Response != "crane/crane-1/resp" ||
		ch.Presence != "crane/crane-1/lwt" {
		t.Errorf("Channels() = %+v", ch)
	}
}

// ============================================================================
// Serial -> broker
// ============================================================================

func TestCyclePublishesFramedLines(t *testing.T) {
	b, messaging, port := newTestBridge(t)
	port.pending = []byte("G1 X10\r\nG1 Y20\n")

	b.cycle(context.Background())

	var lines []publication
	for _, p := range messaging.published() {
		if p.topic == "crane/crane-1/resp" {
			lines = append(lines, p)
		}
	}
	if len(lines) != 2 {
		t.Fatalf("got %d response publishes, want 2", len(lines))
	}
	if lines[0].payload != "G1 X10" || lines[1].payload != "G1 Y20" {
		t.Errorf("lines = %q, %q; want G1 X10, G1 Y20", lines[0].payload, lines[1].payload)
	}
	for _, p := range lines {
		if p.retained {
			t.Errorf("response line %q published retained", p.payload)
		}
		if p.qos != 1 {
			t.Errorf("response line %q qos = %d, want 1", p.payload, p.qos)
		}
	}
	if got := b.Counters()["lines_published"]; got != 2 {
		t.Errorf("lines_published = %d, want 2", got)
	}
}

func TestCycleCarriesPartialLineAcrossCycles(t *testing.T) {
	b, messaging, port := newTestBridge(t)

	port.pending = []byte("echo:bu")
	b.cycle(context.Background())
	if len(messaging.published()) > 1 { // presence only
		t.Fatal("partial line published early")
	}

	port.pending = []byte("sy\n")
	b.cycle(context.Background())

	pubs := messaging.published()
	last := pubs[len(pubs)-1]
	if last.topic != "crane/crane-1/resp" || last.payload != "echo:busy" {
		t.Errorf("last publish = %+v, want echo:busy on resp", last)
	}
}

func TestCycleDrainsSerialWhileBrokerDown(t *testing.T) {
	// Output produced while offline is consumed and discarded, never
	// queued; the peripheral must not back up.
	b, messaging, port := newTestBridge(t)
	messaging.connectErr = errBrokerDown
	port.pending = []byte("ok\nok\n")

	b.cycle(context.Background())

	if len(messaging.published()) != 0 {
		t.Errorf("publishes = %v while offline, want none", messaging.published())
	}
	if len(port.pending) != 0 {
		t.Error("serial data not drained while offline")
	}
	if got := b.Counters()["publish_failures"]; got != 2 {
		t.Errorf("publish_failures = %d, want 2", got)
	}
}

// ============================================================================
// Broker -> serial
// ============================================================================

func TestHandleCommandAppendsNewline(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"bare command", "G28", "G28\n"},
		{"already terminated", "M114\n", "M114\n"},
		{"empty payload", "", "\n"},
		{"multi line blob", "G90\nG1 X0\n", "G90\nG1 X0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, port := newTestBridge(t)
			b.handleCommand(Message{Topic: "crane/crane-1/cmd", Payload: []byte(tt.payload)})
			if string(port.written) != tt.want {
				t.Errorf("port received %q, want %q", port.written, tt.want)
			}
		})
	}
}

func TestHandleCommandIgnoresForeignTopic(t *testing.T) {
	b, _, port := newTestBridge(t)
	b.handleCommand(Message{Topic: "crane/crane-1/resp", Payload: []byte("G28")})
	b.handleCommand(Message{Topic: "crane/other/cmd", Payload: []byte("G28")})

	if len(port.written) != 0 {
		t.Errorf("port received %q from foreign topics, want nothing", port.written)
	}
	if got := b.Counters()["commands_forwarded"]; got != 0 {
		t.Errorf("commands_forwarded = %d, want 0", got)
	}
}

func TestHandleCommandSerialWriteError(t *testing.T) {
	b, _, port := newTestBridge(t)
	port.writeErr = errors.New("device gone")

	b.handleCommand(Message{Topic: "crane/crane-1/cmd", Payload: []byte("G28")})

	if got := b.Counters()["serial_write_errors"]; got != 1 {
		t.Errorf("serial_write_errors = %d, want 1", got)
	}
	if got := b.Counters()["commands_forwarded"]; got != 0 {
		t.Errorf("commands_forwarded = %d, want 0", got)
	}
}

func TestInboundDeliveryThroughCycle(t *testing.T) {
	// Full path: connect registers the handler, broker delivery
	// enqueues, the next cycle forwards to the peripheral in order.
	b, messaging, port := newTestBridge(t)
	b.cycle(context.Background())

	messaging.deliver("crane/crane-1/cmd", []byte("G28"))
	messaging.deliver("crane/crane-1/cmd", []byte("G1 X5"))
	b.cycle(context.Background())

	if want := "G28\nG1 X5\n"; string(port.written) != want {
		t.Errorf("port received %q, want %q", port.written, want)
	}
	if got := b.Counters()["commands_forwarded"]; got != 2 {
		t.Errorf("commands_forwarded = %d, want 2", got)
	}
}

func TestEnqueueCopiesPayload(t *testing.T) {
	b, _, _ := newTestBridge(t)
	payload := []byte("G28")
	b.enqueue("crane/crane-1/cmd", payload)
	payload[0] = 'X'

	msg := <-b.inbound
	if string(msg.Payload) != "G28" {
		t.Errorf("queued payload = %q, want G28 (caller mutation leaked)", msg.Payload)
	}
}

// ============================================================================
// Supervision through the cycle
// ============================================================================

func TestCycleConnectOncePerSession(t *testing.T) {
	b, messaging, _ := newTestBridge(t)

	for i := 0; i < 5; i++ {
		b.cycle(context.Background())
	}
	if messaging.connectCalls != 1 {
		t.Errorf("Connect calls = %d over 5 idle cycles, want 1", messaging.connectCalls)
	}
	if len(messaging.subscribes) != 1 {
		t.Errorf("subscribe calls = %d, want 1", len(messaging.subscribes))
	}
}

func TestCycleReconnectAccounting(t *testing.T) {
	b, messaging, _ := newTestBridge(t)

	b.cycle(context.Background())
	messaging.drop()
	b.cycle(context.Background())

	if got := b.Counters()["reconnects"]; got != 1 {
		t.Errorf("reconnects = %d, want 1", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	b, _, _ := newTestBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Run(ctx); err != nil {
		t.Errorf("Run() error = %v on cancellation, want nil", err)
	}
}

// ============================================================================
// Telemetry
// ============================================================================

// fakeTelemetry records counter flushes and connectivity events.
type fakeTelemetry struct {
	flushes []map[string]uint64
	events  []string
}

func (ft *fakeTelemetry) WriteBridgeCounters(_ string, counters map[string]uint64) {
	ft.flushes = append(ft.flushes, counters)
}

func (ft *fakeTelemetry) WriteConnectivityEvent(_, kind string) {
	ft.events = append(ft.events, kind)
}

func TestCounterFlushInterval(t *testing.T) {
	messaging := &fakeMessaging{connected: true}
	clock := newFakeClock()
	telemetry := &fakeTelemetry{}
	b, err := New(Options{
		Identity:          "crane-1",
		Serial:            &fakePort{},
		Link:              netlink.Wired{},
		Messaging:         messaging,
		Logger:            nopLogger{},
		Clock:             clock,
		Telemetry:         telemetry,
		TelemetryInterval: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	b.cycle(context.Background())
	if len(telemetry.flushes) != 0 {
		t.Fatal("counters flushed before interval elapsed")
	}

	clock.Sleep(31 * time.Second)
	b.cycle(context.Background())
	if len(telemetry.flushes) != 1 {
		t.Fatalf("flushes = %d after interval, want 1", len(telemetry.flushes))
	}
	if _, ok := telemetry.flushes[0]["lines_published"]; !ok {
		t.Error("flush missing lines_published counter")
	}
}
