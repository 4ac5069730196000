// Package ioclient exposes the per-frame delegate handle used by the
// network-handling side. A handle is resolved through the association
// registry by frame key or frame-tree node id, and every operation on it
// degrades to a safe default (no interception, no blocking, default cache)
// when no delegate is attached or the delegate has been collected. Delegate
// absence is a normal, frequent condition and is never surfaced as an error.
package ioclient

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/frame"
	"github.com/dgnsrekt/wv_bridge/internal/registry"
	"github.com/dgnsrekt/wv_bridge/internal/webrequest"
)

// Client is a snapshot handle over one frame's association state. The
// delegate reference is resolved once at lookup time and pinned for the
// handle's lifetime, so a record overwritten mid-request keeps answering
// consistently.
type Client struct {
	pending  bool
	delegate delegate.Delegate
}

func fromRecord(rec registry.Record) *Client {
	d, ok := rec.Client.Get()
	if rec.PendingAssociation && ok {
		// A pending record must not carry a reachable delegate; the
		// association protocol was violated upstream.
		slog.Error("ioclient invariant violation: pending association with reachable delegate")
	}
	if !ok {
		d = nil
	}
	return &Client{pending: rec.PendingAssociation, delegate: d}
}

// FromFrameKey resolves a handle by (process, frame) key. Returns nil when
// the registry has no record for the key.
func FromFrameKey(key frame.Key) *Client {
	rec, ok := registry.Shared().Get(key)
	if !ok {
		return nil
	}
	return fromRecord(rec)
}

// FromFrameTreeNode resolves a handle by frame-tree node id. Node lookups
// stay valid across renderer swaps where the (process, frame) key for the
// new instance is not assigned yet.
func FromFrameTreeNode(id frame.NodeID) *Client {
	rec, ok := registry.Shared().GetByNode(id)
	if !ok {
		return nil
	}
	return fromRecord(rec)
}

// PendingAssociation reports whether the frame is waiting for a delegate to
// be attached.
func (c *Client) PendingAssociation() bool {
	return c.pending
}

// CacheMode queries the delegate's cache policy.
func (c *Client) CacheMode() delegate.CacheMode {
	if c.delegate == nil {
		return delegate.CacheModeDefault
	}
	return c.delegate.CacheMode()
}

// ShouldInterceptRequest asks the delegate for a replacement response. A nil
// result means the load proceeds untouched. The call blocks until the
// delegate answers; no registry lock is held here.
func (c *Client) ShouldInterceptRequest(ctx context.Context, req *webrequest.Request) *webrequest.Response {
	if c.delegate == nil {
		return nil
	}
	return c.delegate.ShouldInterceptRequest(ctx, req)
}

// ShouldBlockContentURLs reports whether content: scheme loads are blocked.
func (c *Client) ShouldBlockContentURLs() bool {
	return c.delegate != nil && c.delegate.ShouldBlockContentURLs()
}

// ShouldBlockFileURLs reports whether file: scheme loads are blocked.
func (c *Client) ShouldBlockFileURLs() bool {
	return c.delegate != nil && c.delegate.ShouldBlockFileURLs()
}

// ShouldBlockNetworkLoads reports whether all network loads are blocked.
func (c *Client) ShouldBlockNetworkLoads() bool {
	return c.delegate != nil && c.delegate.ShouldBlockNetworkLoads()
}

// ShouldAcceptThirdPartyCookies reports the page's third-party cookie policy.
func (c *Client) ShouldAcceptThirdPartyCookies() bool {
	return c.delegate != nil && c.delegate.ShouldAcceptThirdPartyCookies()
}

// OnReceivedResponseHeaders forwards observed response headers to the
// delegate. Fire-and-forget; a missing delegate makes this a no-op.
func (c *Client) OnReceivedResponseHeaders(ctx context.Context, req *webrequest.Request, info *webrequest.ResponseInfo) {
	if c.delegate == nil {
		return
	}
	c.delegate.OnReceivedResponseHeaders(ctx, req, info)
}
