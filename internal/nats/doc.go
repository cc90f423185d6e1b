// Package nats bridges the in-process event bus to a NATS broker.
//
// Outbound, process lifecycle and output events are republished on
// per-process subjects (procmux.proc.<name>.lines and friends) so other
// nodes can observe them. Inbound, control commands on
// procmux.control.<name> are dispatched to the local process group.
//
// The bridge degrades gracefully: when the broker is unreachable the
// node keeps running and the bridge keeps reconnecting.
package nats
