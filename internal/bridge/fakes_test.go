package bridge

import (
	"errors"
	"sync"
	"time"

	"github.com/portmodel/cranelink/internal/netlink"
)

// ============================================================================
// Test doubles shared by the supervisor and bridge tests
// ============================================================================

// errBrokerDown simulates a refused broker connection.
var errBrokerDown = errors.New("connection refused")

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.sleeps++
}

// fakeLink scripts a sequence of link states; the last state repeats.
type fakeLink struct {
	states     []netlink.State
	statusErr  error
	beginErr   error
	beginCalls int
	beginSSID  string
	beginPass  string
}

func (l *fakeLink) BeginStation(ssid, password string) error {
	l.beginCalls++
	l.beginSSID = ssid
	l.beginPass = password
	return l.beginErr
}

func (l *fakeLink) Status() (netlink.State, error) {
	if l.statusErr != nil {
		return netlink.StateDown, l.statusErr
	}
	if len(l.states) == 0 {
		return netlink.StateDown, nil
	}
	state := l.states[0]
	if len(l.states) > 1 {
		l.states = l.states[1:]
	}
	return state, nil
}

// publication records one Publish call.
type publication struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// fakeMessaging is an in-memory MessagingClient.
type fakeMessaging struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	connectCalls int
	publishErr   error
	publishes    []publication
	subscribes   []string
	handler      func(topic string, payload []byte)
}

func (m *fakeMessaging) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *fakeMessaging) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *fakeMessaging) drop() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *fakeMessaging) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	if !m.connected {
		return errors.New("not connected")
	}
	m.publishes = append(m.publishes, publication{
		topic:    topic,
		payload:  string(payload),
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *fakeMessaging) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errors.New("not connected")
	}
	m.subscribes = append(m.subscribes, topic)
	m.handler = handler
	return nil
}

// published returns a snapshot of recorded publications.
func (m *fakeMessaging) published() []publication {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publication, len(m.publishes))
	copy(out, m.publishes)
	return out
}

// deliver simulates broker delivery of one message to the registered
// subscription handler.
func (m *fakeMessaging) deliver(topic string, payload []byte) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}

// fakePort is an in-memory serial port. Reads drain pending, Writes
// accumulate.
type fakePort struct {
	pending  []byte
	written  []byte
	writeErr error
	readErr  error
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Write(buf []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, buf...)
	return len(buf), nil
}

func (p *fakePort) Close() error { return nil }

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
