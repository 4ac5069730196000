package delegate

import (
	"context"
	"runtime"
	"testing"

	"github.com/dgnsrekt/wv_bridge/internal/webrequest"
)

type noopDelegate struct{}

func (noopDelegate) CacheMode() CacheMode { return CacheModeCacheOnly }
func (noopDelegate) ShouldInterceptRequest(context.Context, *webrequest.Request) *webrequest.Response {
	return nil
}
func (noopDelegate) ShouldBlockContentURLs() bool        { return false }
func (noopDelegate) ShouldBlockFileURLs() bool           { return false }
func (noopDelegate) ShouldBlockNetworkLoads() bool       { return false }
func (noopDelegate) ShouldAcceptThirdPartyCookies() bool { return false }
func (noopDelegate) OnReceivedResponseHeaders(context.Context, *webrequest.Request, *webrequest.ResponseInfo) {
}

func TestZeroRefIsUnreachable(t *testing.T) {
	var ref Ref
	if _, ok := ref.Get(); ok {
		t.Fatalf("zero Ref resolved; want unreachable")
	}
}

func TestWeakRefResolvesWhileBindingLive(t *testing.T) {
	b := NewBinding(noopDelegate{})
	ref := b.WeakRef()

	d, ok := ref.Get()
	if !ok {
		t.Fatalf("Get() = unreachable while binding held; want reachable")
	}
	if d.CacheMode() != CacheModeCacheOnly {
		t.Fatalf("CacheMode() = %v; want %v", d.CacheMode(), CacheModeCacheOnly)
	}

	runtime.KeepAlive(b)
}

func TestBindingReturnsWrappedDelegate(t *testing.T) {
	d := noopDelegate{}
	b := NewBinding(d)
	if b.Delegate() != d {
		t.Fatalf("Delegate() = %v; want the wrapped delegate", b.Delegate())
	}
}

func TestWeakRefExpiresAfterBindingDropped(t *testing.T) {
	ref := func() Ref {
		return NewBinding(noopDelegate{}).WeakRef()
	}()

	// Two cycles: one to clear the weak pointer, one to be safe about
	// allocations still referenced from stale stack slots.
	runtime.GC()
	runtime.GC()

	if _, ok := ref.Get(); ok {
		t.Fatalf("Get() = reachable after binding collected; want unreachable")
	}
}

func TestParseCacheMode(t *testing.T) {
	cases := []struct {
		in   string
		want CacheMode
	}{
		{"", CacheModeDefault},
		{"default", CacheModeDefault},
		{"no-cache", CacheModeNoCache},
		{"no_cache", CacheModeNoCache},
		{"cache-else-network", CacheModeCacheElseNetwork},
		{"CACHE_ONLY", CacheModeCacheOnly},
	}
	for _, tc := range cases {
		got, err := ParseCacheMode(tc.in)
		if err != nil {
			t.Fatalf("ParseCacheMode(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCacheMode(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseCacheMode("bogus"); err == nil {
		t.Fatalf("ParseCacheMode(bogus) = nil error; want error")
	}
}

func TestCacheModeString(t *testing.T) {
	if got := CacheModeNoCache.String(); got != "no-cache" {
		t.Fatalf("String() = %q; want no-cache", got)
	}
	if got := CacheMode(42).String(); got != "cache-mode(42)" {
		t.Fatalf("String() = %q; want cache-mode(42)", got)
	}
}
