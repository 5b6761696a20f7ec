// Package handler implements HTTP request handlers for the codescape API.
//
// # Handlers
//
// SessionHandler serves the current graph generation: the filtered graph
// with live positions, layout snapshot exports, pins and the generation
// history. It accepts payloads, relayed progress messages, analysis
// requests and interaction events.
//
// The /ws endpoint carries interactions from the presentation layer and
// streams the same events /events delivers over SSE.
//
// Middleware provides request logging, panic recovery, and CORS support.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 202).
// Error responses return JSON with {error, details} structure.
package handler
