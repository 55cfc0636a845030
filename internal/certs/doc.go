// Package certs builds the TLS configuration shared by every Gemini
// connection.
//
// The configuration comes either from PEM files on disk or from a
// self-signed certificate generated at startup. Gemini clients trust on
// first use, so self-signed certificates are the norm; GenerateSelfSigned
// plus WriteFiles produce a long-lived pair for that.
//
// The returned *tls.Config requires TLS 1.2 or newer, advertises the ALPN
// list ("gemini", "h2", "http/1.1" by default) and requests, but does not
// require, a client certificate. It is immutable once handed to the server.
package certs
