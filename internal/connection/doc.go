// Package connection implements a consumer for the robot telemetry stream.
//
// The Client:
//   - Dials the websocket endpoint, retrying with exponential backoff
//   - Decodes each frame into either a record batch or a terminal error
//   - Reports a server-initiated close as ErrStreamEnded
//
// Reconnecting after a drop is the caller's decision; the server never
// reconnects on its own.
package connection
