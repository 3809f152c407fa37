package service

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// requestHeaderDenylist holds the lowercased names of inbound headers that the
// outbound transport regenerates itself.
var requestHeaderDenylist = map[string]bool{
	"host":           true,
	"content-length": true,
}

// FilterRequestHeaders copies every inbound header except those in the
// denylist, matched case-insensitively. Names and values that cannot be
// written on the wire are skipped individually.
func FilterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for name, vals := range src {
		if requestHeaderDenylist[strings.ToLower(name)] {
			continue
		}
		copyValid(dst, name, vals)
	}
	return dst
}

// FilterResponseHeaders copies every upstream header, dropping only the
// names and values that cannot be written on the wire.
func FilterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for name, vals := range src {
		copyValid(dst, name, vals)
	}
	return dst
}

// copyValid keeps name exactly as given. An invalid name drops every value.
func copyValid(dst http.Header, name string, vals []string) {
	if !httpguts.ValidHeaderFieldName(name) {
		return
	}
	for _, v := range vals {
		if httpguts.ValidHeaderFieldValue(v) {
			dst[name] = append(dst[name], v)
		}
	}
}
