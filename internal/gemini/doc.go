// Package gemini implements the plaintext framing of the Gemini protocol.
//
// A request is a single absolute URL terminated by CRLF, at most 1026 bytes
// in total. A response is a status line of the form
//
//	<2-digit status> <meta>\r\n
//
// followed by the body with no further framing; the TLS close marks the end
// of the body.
//
// ReadRequest pulls decrypted bytes from a PlaintextReader until one line
// has been assembled. WriteResponse pushes a header and body through a
// PlaintextWriter, flushing after the header and after every body chunk.
// Both interfaces are satisfied by *tlsengine.Engine.
package gemini
