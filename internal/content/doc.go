// Package content resolves Gemini requests into response bodies.
//
// Routing is deliberately absent: Static answers every request with the same
// resource, either a file on disk or a built-in page.
package content
