// Package engine adapts a CDP browser to the association layer: it turns
// target and frame lifecycle events into frame.Page notifications and
// services paused network requests through per-frame delegate handles.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/wv_bridge/internal/bridge"
	"github.com/dgnsrekt/wv_bridge/internal/frame"
)

// Engine owns the browser connection. Frame lifecycle writes happen on
// chromedp's event goroutines; request filtering runs on goroutines spawned
// per paused request. The association registry is the only shared state
// between the two.
type Engine struct {
	cdpURL    string
	tabFilter string
	onPage    func(frame.Page)
	broker    *bridge.Broker

	raw         *rawCDP
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu    sync.Mutex
	pages map[target.ID]*pageSession
}

type pageSession struct {
	pt     *pageTarget
	url    string
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an Engine. onPage is invoked once per attached page target,
// after its root frame is known; the caller decides how to associate a
// delegate. broker may be nil when no event feed is wanted.
func New(cdpURL, tabFilter string, onPage func(frame.Page), broker *bridge.Broker) *Engine {
	return &Engine{
		cdpURL:    cdpURL,
		tabFilter: strings.ToLower(strings.TrimSpace(tabFilter)),
		onPage:    onPage,
		broker:    broker,
		pages:     make(map[target.ID]*pageSession),
	}
}

// Connect establishes the browser-level discovery connection and attaches to
// every existing page target that matches the tab filter.
func (e *Engine) Connect(ctx context.Context) error {
	slog.Info("engine connect start", "cdp_url", e.cdpURL)

	e.raw = newRawCDP(e.cdpURL)
	if err := e.raw.connect(ctx); err != nil {
		return fmt.Errorf("engine: connect browser endpoint: %w", err)
	}

	e.raw.on("Target.targetCreated", e.onTargetCreated)
	e.raw.on("Target.targetDestroyed", e.onTargetDestroyed)
	if err := e.raw.setDiscoverTargets(ctx); err != nil {
		e.raw.close()
		return fmt.Errorf("engine: set discover targets: %w", err)
	}

	e.allocCtx, e.allocCancel = chromedp.NewRemoteAllocator(context.Background(), e.cdpURL)

	targets, err := e.raw.listTargets(ctx)
	if err != nil {
		e.Close()
		return fmt.Errorf("engine: list targets: %w", err)
	}

	attached := 0
	for _, t := range targets {
		if t.Type != "page" || !e.matchesTabURL(t.URL) {
			continue
		}
		if err := e.attachTarget(t.TargetID, t.URL); err != nil {
			slog.Error("engine target attach failed", "target_id", t.TargetID, "url", t.URL, "error", err)
			continue
		}
		attached++
	}

	slog.Info("engine connect ok", "cdp_url", e.cdpURL, "pages", attached)
	return nil
}

// Close detaches every page and drops the browser connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	sessions := make([]*pageSession, 0, len(e.pages))
	for id, s := range e.pages {
		sessions = append(sessions, s)
		delete(e.pages, id)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
		s.pt.destroy()
	}
	if e.raw != nil {
		e.raw.close()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

// PageCount returns the number of attached page targets.
func (e *Engine) PageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pages)
}

func (e *Engine) matchesTabURL(url string) bool {
	if e.tabFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), e.tabFilter)
}

func (e *Engine) attachTarget(targetID target.ID, url string) error {
	e.mu.Lock()
	if _, ok := e.pages[targetID]; ok {
		e.mu.Unlock()
		return nil
	}
	tabCtx, tabCancel := chromedp.NewContext(e.allocCtx, chromedp.WithTargetID(targetID))
	pt := newPageTarget(targetID)
	e.pages[targetID] = &pageSession{pt: pt, url: url, ctx: tabCtx, cancel: tabCancel}
	e.mu.Unlock()

	chromedp.ListenTarget(tabCtx, e.eventHandler(tabCtx, pt))

	enableFetch := fetch.Enable().WithPatterns([]*fetch.RequestPattern{
		{RequestStage: fetch.RequestStageRequest},
		{RequestStage: fetch.RequestStageResponse},
	})
	if err := chromedp.Run(tabCtx, page.Enable(), enableFetch); err != nil {
		e.detachTarget(targetID)
		return fmt.Errorf("enable page/fetch domains: %w", err)
	}

	var tree *page.FrameTree
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var treeErr error
		tree, treeErr = page.GetFrameTree().Do(ctx)
		return treeErr
	}))
	if err != nil {
		e.detachTarget(targetID)
		return fmt.Errorf("get frame tree: %w", err)
	}

	pt.setRoot(tree.Frame.ID, tree.Frame.Name)
	for _, child := range tree.ChildFrames {
		e.addSubtree(pt, child)
	}

	if e.onPage != nil {
		e.onPage(pt)
	}
	e.publish(bridge.KindPageAttached, pt.processID, url)

	slog.Info("engine attached to page", "target_id", targetID, "process_id", pt.processID, "url", url)
	return nil
}

func (e *Engine) addSubtree(pt *pageTarget, tree *page.FrameTree) {
	pt.frameAttached(tree.Frame.ID, tree.Frame.Name)
	for _, child := range tree.ChildFrames {
		e.addSubtree(pt, child)
	}
}

func (e *Engine) detachTarget(targetID target.ID) {
	e.mu.Lock()
	s, ok := e.pages[targetID]
	if ok {
		delete(e.pages, targetID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	s.cancel()
	s.pt.destroy()
	e.publish(bridge.KindPageDestroyed, s.pt.processID, s.url)
	slog.Info("engine detached from page", "target_id", targetID, "process_id", s.pt.processID)
}

func (e *Engine) eventHandler(tabCtx context.Context, pt *pageTarget) func(ev any) {
	return func(ev any) {
		switch ev := ev.(type) {
		case *page.EventFrameAttached:
			pt.frameAttached(ev.FrameID, "")
		case *page.EventFrameNavigated:
			pt.frameNavigated(ev.Frame.ID, ev.Frame.Name)
		case *page.EventFrameDetached:
			pt.frameDetached(ev.FrameID)
		case *fetch.EventRequestPaused:
			// Listener callbacks must not block; replies go out on their
			// own goroutine.
			go e.handleRequestPaused(tabCtx, ev)
		}
	}
}

func (e *Engine) onTargetCreated(params json.RawMessage) {
	var ev struct {
		TargetInfo *target.Info `json:"targetInfo"`
	}
	if err := json.Unmarshal(params, &ev); err != nil || ev.TargetInfo == nil {
		return
	}
	if ev.TargetInfo.Type != "page" || !e.matchesTabURL(ev.TargetInfo.URL) {
		return
	}
	if err := e.attachTarget(ev.TargetInfo.TargetID, ev.TargetInfo.URL); err != nil {
		slog.Error("engine attach to new target failed",
			"target_id", ev.TargetInfo.TargetID, "error", err)
	}
}

func (e *Engine) onTargetDestroyed(params json.RawMessage) {
	var ev struct {
		TargetID target.ID `json:"targetId"`
	}
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	e.detachTarget(ev.TargetID)
}

func (e *Engine) publish(kind bridge.Kind, processID int64, url string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(bridge.Event{Kind: kind, ProcessID: processID, URL: url})
}
