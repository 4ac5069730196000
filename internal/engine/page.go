package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/wv_bridge/internal/frame"
)

// Identity counters. CDP frame ids are opaque strings; the association layer
// wants small integer identities, so node ids are interned per frame-id
// string and routing ids are assigned per frame *instance* (a navigation
// that swaps the document gets a fresh routing id on the same node).
var (
	nextProcessID atomic.Int64
	nextRoutingID atomic.Int64
	nextNodeID    atomic.Int64

	nodeTableMu sync.Mutex
	nodeTable   = make(map[cdp.FrameID]frame.NodeID)
)

func internNodeID(id cdp.FrameID) frame.NodeID {
	nodeTableMu.Lock()
	defer nodeTableMu.Unlock()
	if node, ok := nodeTable[id]; ok {
		return node
	}
	node := frame.NodeID(nextNodeID.Add(1))
	nodeTable[id] = node
	return node
}

func lookupNodeID(id cdp.FrameID) (frame.NodeID, bool) {
	nodeTableMu.Lock()
	defer nodeTableMu.Unlock()
	node, ok := nodeTable[id]
	return node, ok
}

// engineFrame is one frame instance. Immutable after creation.
type engineFrame struct {
	key  frame.Key
	node frame.NodeID
	name string
}

func (f *engineFrame) Key() frame.Key       { return f.key }
func (f *engineFrame) NodeID() frame.NodeID { return f.node }
func (f *engineFrame) Name() string         { return f.name }

// pageTarget adapts one CDP page target to the frame.Page model. Lifecycle
// events arrive on chromedp's event goroutine; observer notifications are
// issued outside the page lock so observers may call back into lookups.
type pageTarget struct {
	targetID  target.ID
	processID int64

	mu        sync.Mutex
	root      *engineFrame
	frames    map[cdp.FrameID]*engineFrame
	observers []frame.Observer
	destroyed bool
}

func newPageTarget(targetID target.ID) *pageTarget {
	return &pageTarget{
		targetID:  targetID,
		processID: nextProcessID.Add(1),
		frames:    make(map[cdp.FrameID]*engineFrame),
	}
}

func (p *pageTarget) newFrame(id cdp.FrameID, name string) *engineFrame {
	return &engineFrame{
		key:  frame.Key{ProcessID: p.processID, FrameID: nextRoutingID.Add(1)},
		node: internNodeID(id),
		name: name,
	}
}

func (p *pageTarget) RootFrame() frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root == nil {
		return nil
	}
	return p.root
}

func (p *pageTarget) AddObserver(o frame.Observer) {
	p.mu.Lock()
	p.observers = append(p.observers, o)
	p.mu.Unlock()
}

func (p *pageTarget) RemoveObserver(o frame.Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.observers {
		if existing == o {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			return
		}
	}
}

func (p *pageTarget) snapshotObservers() []frame.Observer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]frame.Observer(nil), p.observers...)
}

// setRoot installs the root frame discovered from the initial frame tree.
func (p *pageTarget) setRoot(id cdp.FrameID, name string) {
	p.mu.Lock()
	if p.root != nil || p.destroyed {
		p.mu.Unlock()
		return
	}
	f := p.newFrame(id, name)
	p.root = f
	p.frames[id] = f
	p.mu.Unlock()

	for _, o := range p.snapshotObservers() {
		o.FrameCreated(f)
	}
}

// frameAttached handles a subframe joining the tree.
func (p *pageTarget) frameAttached(id cdp.FrameID, name string) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	if _, ok := p.frames[id]; ok {
		// Already tracked; attach events can repeat across navigations.
		p.mu.Unlock()
		return
	}
	f := p.newFrame(id, name)
	p.frames[id] = f
	p.mu.Unlock()

	slog.Debug("engine frame attached",
		"target_id", p.targetID, "key", f.key.String(), "node_id", int64(f.node))
	for _, o := range p.snapshotObservers() {
		o.FrameCreated(f)
	}
}

// frameNavigated handles a document swap. A known frame id keeps its node
// but gets a fresh instance; the new instance is announced before the old
// one is deleted, which is why node entries track instance sets.
func (p *pageTarget) frameNavigated(id cdp.FrameID, name string) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	old, known := p.frames[id]
	f := p.newFrame(id, name)
	p.frames[id] = f
	if !known && p.root == nil {
		p.root = f
	} else if known && old == p.root {
		p.root = f
	}
	p.mu.Unlock()

	slog.Debug("engine frame navigated",
		"target_id", p.targetID, "key", f.key.String(), "node_id", int64(f.node), "replaced", known)
	observers := p.snapshotObservers()
	for _, o := range observers {
		o.FrameCreated(f)
	}
	if known {
		for _, o := range observers {
			o.FrameDeleted(old)
		}
	}
}

// frameDetached handles a frame leaving the tree.
func (p *pageTarget) frameDetached(id cdp.FrameID) {
	p.mu.Lock()
	f, ok := p.frames[id]
	if ok {
		delete(p.frames, id)
		if f == p.root {
			p.root = nil
		}
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	slog.Debug("engine frame detached",
		"target_id", p.targetID, "key", f.key.String(), "node_id", int64(f.node))
	for _, o := range p.snapshotObservers() {
		o.FrameDeleted(f)
	}
}

// destroy tears the page down: every live frame is deleted, then the page
// destruction itself is announced so observers can release themselves.
func (p *pageTarget) destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	remaining := make([]*engineFrame, 0, len(p.frames))
	for _, f := range p.frames {
		remaining = append(remaining, f)
	}
	p.frames = make(map[cdp.FrameID]*engineFrame)
	p.root = nil
	p.mu.Unlock()

	observers := p.snapshotObservers()
	for _, f := range remaining {
		for _, o := range observers {
			o.FrameDeleted(f)
		}
	}
	for _, o := range observers {
		o.PageDestroyed()
	}
}
