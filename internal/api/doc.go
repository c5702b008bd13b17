// Package api serves the robot telemetry HTTP surface.
//
// Routes:
//   - GET|HEAD /         liveness
//   - GET|HEAD /robots   snapshot of every robot record
//   - GET|HEAD /version  build information
//   - GET <stream.path>  websocket stream, one record batch per interval
//
// Every response passes through CORS, request-id and access-log middleware.
// Failures are returned as {"error": ..., "kind": ...} JSON bodies.
package api
