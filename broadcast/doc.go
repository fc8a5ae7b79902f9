// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package broadcast is the live channel between the server and connected
clients.

A Hub fans every published event out to all subscribers. Each subscriber owns
a buffered channel; when it falls behind, events are dropped for that
subscriber only. Events from one publisher arrive in publish order.

	hub := broadcast.NewHub()
	msgs, cancel := hub.Subscribe()
	defer cancel()

	for msg := range msgs {
		conn.WriteMessage(websocket.TextMessage, msg.Envelope)
	}

Every message is encoded once. Envelope carries the wire form used by the
WebSocket transport:

	{"event": "tally-updated", "data": {...}}

Data carries the payload alone for transports that frame the event name
themselves, such as Server-Sent Events.

Sinks see every event after subscribers are served. The RabbitMQ mirror in
package event is one. Sink errors are logged and never reach the publisher.
*/
package broadcast
