// Package bridge contains the gateway core: the single control loop
// that binds a line-oriented serial peripheral to broker channels.
//
// # Architecture
//
// The bridge is deliberately single-threaded. One goroutine runs the
// cycle:
//
//	ensure network -> ensure broker -> pump inbound commands ->
//	drain serial output -> (flush telemetry)
//
// Connectivity is supervised bottom-up by Supervisor: the network link
// first, the broker session on top. Both ensure operations are
// idempotent and fail-soft, so the cycle simply calls them every pass
// and the serial side keeps draining even while offline.
//
// Inbound commands arrive on the broker client's delivery goroutine
// and are only enqueued there; the cycle drains the queue, so command
// handling never runs concurrently with the rest of the loop. The
// queue is FIFO and blocking, preserving broker delivery order without
// drops.
//
// Peripheral output is framed by LineFramer (CRLF normalisation, empty
// line suppression, bounded buffer with silent truncation) and each
// completed line is published retain=false, so late subscribers never
// replay stale machine output. Presence is the only retained state.
//
// # Usage
//
//	b, err := bridge.New(bridge.Options{
//	    Identity:  cfg.Device.ID,
//	    Serial:    port,
//	    Link:      link,
//	    Messaging: client,
//	    QoS:       byte(cfg.MQTT.QoS),
//	    Logger:    logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return b.Run(ctx)
package bridge
