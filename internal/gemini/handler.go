package gemini

import (
	"io"
	"strings"
)

// Handler resolves a request into a response header and body source.
type Handler interface {
	ServeGemini(req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(req *Request) (*Response, error)

func (f HandlerFunc) ServeGemini(req *Request) (*Response, error) {
	return f(req)
}

// TextResponse builds a response with an in-memory body.
func TextResponse(status Status, meta, body string) *Response {
	return &Response{
		Header: Header{Status: status, Meta: meta},
		Body:   io.NopCloser(strings.NewReader(body)),
	}
}

// StatusResponse builds a body-less response.
func StatusResponse(status Status, meta string) *Response {
	return &Response{Header: Header{Status: status, Meta: meta}}
}
