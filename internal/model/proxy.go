// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest is an inbound request to be forwarded upstream.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Path     string // inbound path, still carrying the proxy prefix
	RawQuery string // passed through byte-for-byte, never re-encoded
	Header   http.Header
	Body     []byte
}

// ProxyResponse is the upstream response to be relayed back to the client.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
