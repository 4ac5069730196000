// Package delegate defines the client-facing policy contract. A delegate is
// the page-supplied object that answers interception, blocking, caching and
// cookie questions for every network load issued on the page's behalf.
package delegate

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgnsrekt/wv_bridge/internal/webrequest"
)

// CacheMode selects how a request may use the HTTP cache.
type CacheMode int

const (
	CacheModeDefault CacheMode = iota
	CacheModeNoCache
	CacheModeCacheElseNetwork
	CacheModeCacheOnly
)

func (m CacheMode) String() string {
	switch m {
	case CacheModeDefault:
		return "default"
	case CacheModeNoCache:
		return "no-cache"
	case CacheModeCacheElseNetwork:
		return "cache-else-network"
	case CacheModeCacheOnly:
		return "cache-only"
	default:
		return fmt.Sprintf("cache-mode(%d)", int(m))
	}
}

// ParseCacheMode maps a config string to a CacheMode.
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return CacheModeDefault, nil
	case "no-cache", "no_cache":
		return CacheModeNoCache, nil
	case "cache-else-network", "cache_else_network":
		return CacheModeCacheElseNetwork, nil
	case "cache-only", "cache_only":
		return CacheModeCacheOnly, nil
	default:
		return CacheModeDefault, fmt.Errorf("unknown cache mode: %q", s)
	}
}

// Delegate is implemented by the client policy object. Calls arrive on the
// network-handling goroutines; implementations that live on another goroutine
// must marshal internally and block the caller until they have an answer.
type Delegate interface {
	// CacheMode returns the cache policy for the page's requests.
	CacheMode() CacheMode

	// ShouldInterceptRequest may produce a replacement response for the
	// request. Returning nil lets the load proceed untouched.
	ShouldInterceptRequest(ctx context.Context, req *webrequest.Request) *webrequest.Response

	ShouldBlockContentURLs() bool
	ShouldBlockFileURLs() bool
	ShouldBlockNetworkLoads() bool
	ShouldAcceptThirdPartyCookies() bool

	// OnReceivedResponseHeaders observes the headers of a completed network
	// response. Fire-and-forget; there is no return value.
	OnReceivedResponseHeaders(ctx context.Context, req *webrequest.Request, info *webrequest.ResponseInfo)
}
