// Package zeromq provides the ZeroMQ PUB/SUB transport for plcbridge.
//
// The Publisher binds a PUB socket and sends two-frame messages
// (topic, JSON body). Sends go through a bounded queue drained by one
// goroutine, so Publish never blocks the poll loop; when the queue is full
// the message is dropped and ErrQueueFull is returned.
//
// The Subscriber dials a SUB socket, subscribes to "{prefix}/" and hands
// each (topic, body) pair to a MessageHandler. Command topic filtering is
// left to the handler.
//
// Both use github.com/go-zeromq/zmq4, a pure Go implementation, so no
// libzmq is needed at build or run time.
//
// Endpoints use the usual ZeroMQ syntax ("tcp://host:port"). For bind
// endpoints the wildcard host "*" is accepted and mapped to 0.0.0.0.
package zeromq
