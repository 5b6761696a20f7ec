// Package service implements the session logic behind the codescape server.
//
// A SessionService owns the current graph generation: the GraphModel built
// from the latest payload, and the frame coordinator that lays it out. Every
// payload, whether it arrives from the analysis service, a relayed progress
// message or a watched file, produces a new generation; the previous
// coordinator is stopped before the new one starts.
//
// # Event System
//
// Coordinator callbacks are translated into events on the EventBus, which
// the SSE hub relays to presentation clients. Position and edge geometry
// events are rate limited; the final positions always go out with the
// layout_converged event.
//
// # Pins
//
// Pins made through interactions are written to the pin store and restored
// on later generations of the same project.
package service
