package webrequest

import (
	"io"
	"strings"
)

// Response is a delegate-provided replacement for a network response. A nil
// *Response from a delegate means "do not intercept".
type Response struct {
	MimeType     string
	Encoding     string
	StatusCode   int
	ReasonPhrase string
	Headers      HeaderList
	Body         io.Reader
}

// ResponseInfo carries the observed headers of a real network response into
// the delegate's OnReceivedResponseHeaders notification.
type ResponseInfo struct {
	StatusCode   int
	ReasonPhrase string
	MimeType     string
	Charset      string
	Headers      HeaderList
}

// NewResponseInfo builds a ResponseInfo, deriving mime type and charset from
// the Content-Type header in the list.
func NewResponseInfo(statusCode int, reasonPhrase string, headers HeaderList) *ResponseInfo {
	mime, charset := splitContentType(headers.Get("Content-Type"))
	return &ResponseInfo{
		StatusCode:   statusCode,
		ReasonPhrase: reasonPhrase,
		MimeType:     mime,
		Charset:      charset,
		Headers:      headers.Clone(),
	}
}

// splitContentType parses "text/html; charset=utf-8" into its parts.
func splitContentType(contentType string) (mime, charset string) {
	parts := strings.Split(contentType, ";")
	mime = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "charset="); ok {
			charset = strings.Trim(v, `"`)
		}
	}
	return mime, charset
}
