// Package server implements the Gemini connection supervisor.
//
// The server accepts plain TCP connections and gives each one its own
// goroutine, which owns the transport for its whole life and runs a single
// exchange:
//
//  1. Bind a tlsengine.Engine to the transport and the shared TLS config
//  2. Drive the handshake to completion
//  3. Assemble one request line (gemini.ReadRequest)
//  4. Ask the handler for a status, meta and body
//  5. Stream the response (gemini.WriteResponse)
//  6. Send close-notify and shut the transport down
//
// # Fault Isolation
//
// Every fault is contained in the connection goroutine: handshake failures,
// malformed requests, handler errors, body source failures and panics are
// logged and end that connection only. The accept loop never blocks on a
// connection's I/O.
//
// # Usage Example
//
//	config := &server.Config{
//	    Host:         "127.0.0.1",
//	    Port:         1965,
//	    GenerateCert: true,
//	    ConnTimeout:  30 * time.Second,
//	    LogLevel:     "info",
//	}
//
//	srv, err := server.New(config, content.NewStatic("index.gmi", ""))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Malformed Requests
//
// By default a request that is not a CRLF-terminated absolute URL is
// answered with nothing: the connection is closed after close-notify.
// Setting RejectMalformed sends "59 bad request" first.
//
// # Graceful Shutdown
//
// The server handles SIGINT and SIGTERM:
//  1. Stop accepting new connections
//  2. Withdraw the mDNS advertisement
//  3. Close active transports
//  4. Wait up to 10 seconds for connection goroutines to finish
package server
