// Package sink provides broadcast consumers that carry encoded frames out
// of the process.
//
//   - [WebSocket] writes each frame as a binary message to one client and
//     reads "ack" text messages for acknowledgment.
//   - [MQTT] publishes each frame to a broker topic.
//   - [Preview] draws frames on a terminal with colored half blocks.
//
// Every sink implements [broadcast.Consumer]; WebSocket also implements
// [broadcast.Acker].
package sink
