// Package server implements the MCP (Model Context Protocol) surface of
// overlay-eye.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line on stdin
// and one response per line on stdout. Operational logs go to stderr.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Tools
//
//   - locate_element: run the localization cascade on a screenshot file
//   - evaluate_dataset: score the cascade against a labelled dataset
//   - scale_box: map a capture-space box onto a (possibly HiDPI) display
//   - clear_result: hide the result currently shown on the overlay
//
// locate_element goes through the overlay Session when one is configured,
// so a call made while another run is in flight fails with ErrBusy instead
// of queueing.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: the Go error string
//
// A run that finds nothing is not an error: the result has found=false and
// stage "not_found".
package server
