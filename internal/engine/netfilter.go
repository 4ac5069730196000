package engine

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/ioclient"
	"github.com/dgnsrekt/wv_bridge/internal/webrequest"
)

// handleRequestPaused services one paused request on the network side of the
// bridge. The handle lookup is a registry read; the delegate calls that
// follow run without any registry lock held and may block until the delegate
// answers.
func (e *Engine) handleRequestPaused(tabCtx context.Context, ev *fetch.EventRequestPaused) {
	node, known := lookupNodeID(ev.FrameID)
	var client *ioclient.Client
	if known {
		client = ioclient.FromFrameTreeNode(node)
	}
	if client == nil {
		// No association for this frame; pass the request through.
		e.continueRequest(tabCtx, ev, nil)
		return
	}

	req := webrequest.FromCDP(ev.Request, ev.ResourceType, false)

	if isResponseStage(ev) {
		e.notifyResponseHeaders(tabCtx, client, req, ev)
		return
	}

	if reason, blocked := blockReason(client, req.URL); blocked {
		slog.Debug("engine blocked request", "url", req.URL, "reason", reason)
		e.failRequest(tabCtx, ev, reason)
		return
	}

	if resp := client.ShouldInterceptRequest(tabCtx, req); resp != nil {
		e.fulfillRequest(tabCtx, ev, resp)
		return
	}

	e.continueRequest(tabCtx, ev, requestOverrides(client, req))
}

func isResponseStage(ev *fetch.EventRequestPaused) bool {
	return ev.ResponseStatusCode != 0 || len(ev.ResponseHeaders) > 0 || ev.ResponseErrorReason != ""
}

// blockReason applies the delegate's scheme and network blocking policy.
func blockReason(client *ioclient.Client, rawURL string) (network.ErrorReason, bool) {
	switch {
	case strings.HasPrefix(rawURL, "content:"):
		if client.ShouldBlockContentURLs() {
			return network.ErrorReasonAccessDenied, true
		}
	case strings.HasPrefix(rawURL, "file:"):
		if client.ShouldBlockFileURLs() {
			return network.ErrorReasonAccessDenied, true
		}
	default:
		if client.ShouldBlockNetworkLoads() {
			return network.ErrorReasonBlockedByClient, true
		}
	}
	return "", false
}

// requestOverrides builds replacement request headers from the delegate's
// cache and cookie policy. Returns nil when the request can continue
// unmodified.
func requestOverrides(client *ioclient.Client, req *webrequest.Request) []*fetch.HeaderEntry {
	headers := req.Headers.Clone()
	modified := false

	switch client.CacheMode() {
	case delegate.CacheModeNoCache:
		headers.Add("Cache-Control", "no-cache")
		modified = true
	case delegate.CacheModeCacheElseNetwork:
		headers.Add("Cache-Control", "max-stale=2592000")
		modified = true
	case delegate.CacheModeCacheOnly:
		headers.Add("Cache-Control", "only-if-cached")
		modified = true
	}

	if !client.ShouldAcceptThirdPartyCookies() && isThirdParty(req) && headers.Get("Cookie") != "" {
		stripped := make(webrequest.HeaderList, 0, len(headers))
		for _, h := range headers {
			if strings.EqualFold(h.Name, "Cookie") {
				continue
			}
			stripped = append(stripped, h)
		}
		headers = stripped
		modified = true
	}

	if !modified {
		return nil
	}
	return toHeaderEntries(headers)
}

// isThirdParty reports whether the request targets a different host than the
// document that issued it, judged by the Referer/Origin header.
func isThirdParty(req *webrequest.Request) bool {
	if req.IsMainFrame {
		return false
	}
	source := req.Headers.Get("Referer")
	if source == "" {
		source = req.Headers.Get("Origin")
	}
	if source == "" {
		return false
	}
	sourceURL, err := url.Parse(source)
	if err != nil {
		return false
	}
	reqURL, err := url.Parse(req.URL)
	if err != nil {
		return false
	}
	return sourceURL.Hostname() != reqURL.Hostname()
}

func (e *Engine) notifyResponseHeaders(tabCtx context.Context, client *ioclient.Client, req *webrequest.Request, ev *fetch.EventRequestPaused) {
	var headers webrequest.HeaderList
	for _, h := range ev.ResponseHeaders {
		headers.Add(h.Name, h.Value)
	}
	info := webrequest.NewResponseInfo(int(ev.ResponseStatusCode), ev.ResponseStatusText, headers)
	client.OnReceivedResponseHeaders(tabCtx, req, info)

	if err := chromedp.Run(tabCtx, fetch.ContinueResponse(ev.RequestID)); err != nil {
		slog.Debug("engine continue response failed", "request_id", ev.RequestID, "error", err)
	}
}

func (e *Engine) continueRequest(tabCtx context.Context, ev *fetch.EventRequestPaused, headers []*fetch.HeaderEntry) {
	action := fetch.ContinueRequest(ev.RequestID)
	if len(headers) > 0 {
		action = action.WithHeaders(headers)
	}
	if isResponseStage(ev) {
		if err := chromedp.Run(tabCtx, fetch.ContinueResponse(ev.RequestID)); err != nil {
			slog.Debug("engine continue response failed", "request_id", ev.RequestID, "error", err)
		}
		return
	}
	if err := chromedp.Run(tabCtx, action); err != nil {
		slog.Debug("engine continue request failed", "request_id", ev.RequestID, "error", err)
	}
}

func (e *Engine) failRequest(tabCtx context.Context, ev *fetch.EventRequestPaused, reason network.ErrorReason) {
	if err := chromedp.Run(tabCtx, fetch.FailRequest(ev.RequestID, reason)); err != nil {
		slog.Debug("engine fail request failed", "request_id", ev.RequestID, "error", err)
	}
}

func (e *Engine) fulfillRequest(tabCtx context.Context, ev *fetch.EventRequestPaused, resp *webrequest.Response) {
	var body []byte
	if resp.Body != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			slog.Error("engine read intercepted body failed", "url", ev.Request.URL, "error", err)
			e.failRequest(tabCtx, ev, network.ErrorReasonFailed)
			return
		}
		body = data
	}

	action := fetch.FulfillRequest(ev.RequestID, int64(resp.StatusCode)).
		WithResponseHeaders(toHeaderEntries(resp.Headers)).
		WithBody(base64.StdEncoding.EncodeToString(body))
	if resp.ReasonPhrase != "" {
		action = action.WithResponsePhrase(resp.ReasonPhrase)
	}

	slog.Debug("engine fulfilled request", "url", ev.Request.URL, "status", resp.StatusCode)
	if err := chromedp.Run(tabCtx, action); err != nil {
		slog.Debug("engine fulfill request failed", "request_id", ev.RequestID, "error", err)
	}
}

func toHeaderEntries(headers webrequest.HeaderList) []*fetch.HeaderEntry {
	if len(headers) == 0 {
		return nil
	}
	out := make([]*fetch.HeaderEntry, 0, len(headers))
	for _, h := range headers {
		out = append(out, &fetch.HeaderEntry{Name: h.Name, Value: h.Value})
	}
	return out
}
