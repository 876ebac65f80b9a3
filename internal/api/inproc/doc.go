// Package inproc embeds the terminal service without a network hop. A
// Client is a registry endpoint with a typed request surface and the same
// message stream a websocket peer would see, which keeps the two
// transports behaviorally interchangeable.
package inproc
