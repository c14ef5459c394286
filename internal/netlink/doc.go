// Package netlink abstracts the network link underneath the gateway.
//
// The bridge's connectivity supervisor treats the link as an external
// collaborator with two primitives: begin a station-mode association
// and report link status. On Linux the association itself belongs to
// NetworkManager, so Station shells out to nmcli and reads status from
// sysfs rather than reimplementing wpa_supplicant.
//
// Wired covers deployments where the link is managed entirely outside
// the gateway.
package netlink
