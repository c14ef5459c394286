package mqtt

import "fmt"

// TopicPrefix is the base for all crane channel names.
//
// The naming convention is a wire contract shared with dashboards and
// operator tooling; the derived names must be bit-exact:
//
//	crane/<id>/cmd   incoming command lines -> serial
//	crane/<id>/resp  serial output lines -> broker
//	crane/<id>/lwt   presence record (retained)
const TopicPrefix = "crane"

// Channels is the set of channel names derived from a device identity.
// It is computed once at startup and immutable thereafter.
type Channels struct {
	// Command receives command lines for the serial peripheral.
	Command string

	// Response carries completed serial output lines, not retained.
	Response string

	// Presence holds the retained online/offline record; it is also the
	// last-will target registered at connect time.
	Presence string
}

// NewChannels derives the channel set for a device identity.
//
// Pure and deterministic. The identity must be non-empty; config
// validation rejects an empty identity before this is ever called.
func NewChannels(identity string) Channels {
	base := fmt.Sprintf("%s/%s", TopicPrefix, identity)
	return Channels{
		Command:  base + "/cmd",
		Response: base + "/resp",
		Presence: base + "/lwt",
	}
}
