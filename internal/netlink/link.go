package netlink

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// associateTimeout bounds one nmcli invocation. This is separate from
// the supervisor's overall attempt timeout, which covers association
// plus the status polling that follows.
const associateTimeout = 15 * time.Second

// State is the network link state as the supervisor sees it.
type State int

const (
	// StateDown means the interface has no usable link.
	StateDown State = iota

	// StateUp means the interface reports an operational link.
	StateUp
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	if s == StateUp {
		return "up"
	}
	return "down"
}

// Link is the network link as an external collaborator. The supervisor
// only ever asks it to begin a station-mode association and to report
// link status; DHCP and the rest of the stack are the OS's problem.
type Link interface {
	// BeginStation initiates a station-mode association with the given
	// credentials. It returns once the attempt has been handed to the
	// OS; the caller polls Status() to observe the outcome.
	BeginStation(ssid, password string) error

	// Status reports the current link state.
	Status() (State, error)
}

// Station manages a Wi-Fi interface through NetworkManager (nmcli),
// reading link status from sysfs. Association attempts are idempotent:
// re-running nmcli for an already-connected SSID is a no-op.
type Station struct {
	// Interface is the wireless interface name (e.g. wlan0).
	Interface string

	// run invokes an external command; replaced in tests.
	run func(name string, args ...string) error
}

// NewStation returns a Station for the given interface.
func NewStation(iface string) *Station {
	return &Station{
		Interface: iface,
		run:       runCommand,
	}
}

// BeginStation implements Link by asking NetworkManager to connect the
// interface to the given SSID.
func (s *Station) BeginStation(ssid, password string) error {
	args := []string{"device", "wifi", "connect", ssid, "ifname", s.Interface}
	if password != "" {
		args = append(args, "password", password)
	}
	if err := s.run("nmcli", args...); err != nil {
		return fmt.Errorf("associating %s with %q: %w", s.Interface, ssid, err)
	}
	return nil
}

// Status implements Link by reading the interface operstate from sysfs.
func (s *Station) Status() (State, error) {
	data, err := os.ReadFile(operstatePath(s.Interface))
	if err != nil {
		return StateDown, fmt.Errorf("reading operstate for %s: %w", s.Interface, err)
	}
	return parseOperstate(string(data)), nil
}

// Wired is a Link for deployments where the network is managed outside
// the gateway (Ethernet, externally configured Wi-Fi). Association is a
// no-op and the link is reported up; a dead cable surfaces as broker
// connect failures, which the supervisor already retries.
type Wired struct{}

// BeginStation implements Link as a no-op.
func (Wired) BeginStation(_, _ string) error { return nil }

// Status implements Link, always reporting the link up.
func (Wired) Status() (State, error) { return StateUp, nil }

// operstatePath returns the sysfs operstate file for an interface.
func operstatePath(iface string) string {
	return fmt.Sprintf("/sys/class/net/%s/operstate", iface)
}

// parseOperstate maps a sysfs operstate value to a State.
//
// Kernel values: up, down, dormant, notpresent, lowerlayerdown,
// testing, unknown. Only "up" counts as usable.
func parseOperstate(raw string) State {
	if strings.TrimSpace(raw) == "up" {
		return StateUp
	}
	return StateDown
}

// runCommand executes an external command with a bounded timeout.
func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	done := make(chan error, 1)

	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(associateTimeout):
		_ = cmd.Process.Kill() //nolint:errcheck // Kill on timeout, nothing to do on failure
		return fmt.Errorf("%s timed out after %v", name, associateTimeout)
	}
}
