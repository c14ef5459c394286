// Package serial wraps the physical serial peripheral for the bridge.
//
// The motion firmware (e.g. Marlin) speaks a line-oriented protocol over
// UART. This package exposes exactly the primitives the bridge cycle
// needs: a prompt, bounded Read for the drain step and an ordered Write
// for command forwarding. Line framing is not done here; that is the
// bridge's LineFramer.
//
// The concrete implementation uses go.bug.st/serial with a short read
// timeout so a quiet peripheral never blocks the cycle.
package serial
