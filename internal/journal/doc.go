// Package journal records the gateway's connectivity history.
//
// Flaky RF environments produce failure patterns (association flapping,
// broker churn) that are invisible once the moment has passed; the
// journal keeps a persistent trail of link, broker and presence events
// so they can be diagnosed after the fact. Serial traffic is
// deliberately never recorded.
//
// The journal is optional; when disabled the bridge runs without it.
package journal
