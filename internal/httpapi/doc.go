// Package httpapi exposes the overlay session over HTTP.
//
// Routes:
//
//	GET  /health            liveness plus session state
//	POST /v1/locate         multipart screenshot upload, runs the cascade
//	GET  /v1/overlay/ws     websocket feed of overlay show/clear messages
//
// POST /v1/locate takes the form fields image (file), task, and optionally
// logical_width, logical_height and pixel_ratio describing the display the
// result will be drawn on. It answers 409 while another run is in flight.
//
// The websocket feed is how an external overlay renderer learns what to
// draw. Every session message is broadcast as JSON to all connected
// clients; a client that connects late receives the last message first.
package httpapi
