// Package broadcast implements the live quote fan-out using the actor pattern.
//
// The Broadcaster tracks connected clients in a single goroutine reached via a
// command channel (no mutexes). A polling loop runs only while clients are
// connected: it starts on the first register, fetches the subscribed symbols
// each cycle, and fans one serialized message out to per-connection write
// goroutines. Slow or dead clients are evicted without disturbing the cycle.
package broadcast
