package mqtt

import "fmt"

// PresencePayload builds the presence record for a device identity.
//
// The payload is a fixed template consumed by dashboards that do not
// run a full JSON parser; field order and the absence of whitespace are
// part of the wire contract:
//
//	{"online":true,"id":"crane-1"}
//	{"online":false,"id":"crane-1"}
//
// The offline form is registered as the last will at connect time, so
// the broker publishes it on this client's behalf after an abrupt
// disconnect. The online form is published, retained, immediately after
// every successful connect.
func PresencePayload(identity string, online bool) []byte {
	return []byte(fmt.Sprintf(`{"online":%t,"id":"%s"}`, online, identity))
}
