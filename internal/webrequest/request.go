// Package webrequest holds the lightweight projections of in-flight network
// requests and responses that cross the delegate call boundary. Header lists
// preserve insertion order and allow duplicate names, unlike net/http's map
// representation.
package webrequest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/network"
)

// Header is a single request or response header line.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HeaderList is an ordered header collection. Duplicate names are kept.
type HeaderList []Header

// Add appends a header line.
func (h *HeaderList) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Get returns the first value for name (case-insensitive), or "".
func (h HeaderList) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Values returns every value recorded for name, in order.
func (h HeaderList) Values(name string) []string {
	var out []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// Clone returns an independent copy of the list.
func (h HeaderList) Clone() HeaderList {
	if h == nil {
		return nil
	}
	out := make(HeaderList, len(h))
	copy(out, h)
	return out
}

// Request is an immutable projection of one in-flight network request. It is
// built fresh for every delegate call.
type Request struct {
	URL            string
	Method         string
	Headers        HeaderList
	IsMainFrame    bool
	HasUserGesture bool
}

// New builds a Request, copying the header list so later mutation by the
// caller cannot leak into an already-issued delegate call.
func New(url, method string, headers HeaderList, isMainFrame, hasUserGesture bool) *Request {
	return &Request{
		URL:            url,
		Method:         method,
		Headers:        headers.Clone(),
		IsMainFrame:    isMainFrame,
		HasUserGesture: hasUserGesture,
	}
}

// FromCDP builds a Request from a cdproto network request. CDP delivers
// headers as an unordered map, so names are sorted to keep the projection
// deterministic across calls.
func FromCDP(req *network.Request, resourceType network.ResourceType, hasUserGesture bool) *Request {
	var headers HeaderList
	if len(req.Headers) > 0 {
		names := make([]string, 0, len(req.Headers))
		for name := range req.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		headers = make(HeaderList, 0, len(names))
		for _, name := range names {
			headers.Add(name, fmt.Sprint(req.Headers[name]))
		}
	}
	return &Request{
		URL:            req.URL,
		Method:         req.Method,
		Headers:        headers,
		IsMainFrame:    resourceType == network.ResourceTypeDocument,
		HasUserGesture: hasUserGesture,
	}
}
