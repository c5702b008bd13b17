// Package stream implements the push side of the service.
//
// Each websocket connection gets its own session:
//   - Load the store and push the full record set as one JSON array frame
//   - Wait for the push interval (5s by default), then repeat
//   - On a load failure or an empty store, push one {"error": ...} frame and close
//   - On client disconnect or server shutdown, close without pushing
//
// Sessions share nothing but the read-only store. N clients means N
// independent load cycles on N unsynchronised timers.
package stream
