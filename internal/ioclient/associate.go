package ioclient

import (
	"log/slog"

	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/frame"
	"github.com/dgnsrekt/wv_bridge/internal/registry"
)

// entryUpdater keeps the registry synchronized with one page's live frame
// set. Its lifetime is the page's lifetime: Associate registers it as an
// observer and it removes itself when the page is destroyed.
type entryUpdater struct {
	page frame.Page
	ref  delegate.Ref
}

// Associate attaches a delegate binding to a page. The binding must stay
// owned by the caller for the page's lifetime; the registry only keeps weak
// references to it. A root frame that already exists gets its association
// written immediately, covering delegates attached after first navigation.
func Associate(p frame.Page, b *delegate.Binding) {
	u := &entryUpdater{page: p, ref: b.WeakRef()}
	p.AddObserver(u)
	if root := p.RootFrame(); root != nil {
		u.FrameCreated(root)
	}
}

// RegisterPendingPage marks a page's root frame as pending-association
// before any delegate is known, so request handling can distinguish "wait
// for the delegate" from "no delegate will ever come".
func RegisterPendingPage(p frame.Page) {
	root := p.RootFrame()
	if root == nil {
		slog.Error("ioclient: register pending page without root frame")
		return
	}
	registry.Shared().Set(root.Key(), registry.Record{PendingAssociation: true})
}

// SubFrameCreated propagates the parent frame's association to a child
// created outside the generic frame-created path. The engine guarantees the
// parent exists before spawning the child.
func SubFrameCreated(parent, child frame.Key) {
	registry.Shared().AssociateChild(parent, child)
}

func (u *entryUpdater) FrameCreated(f frame.Frame) {
	slog.Debug("ioclient frame associated",
		"frame", f.Name(), "key", f.Key().String(), "node_id", int64(f.NodeID()))
	registry.Shared().SetForFrame(f, registry.Record{PendingAssociation: false, Client: u.ref})
}

func (u *entryUpdater) FrameDeleted(f frame.Frame) {
	slog.Debug("ioclient frame erased",
		"frame", f.Name(), "key", f.Key().String(), "node_id", int64(f.NodeID()))
	registry.Shared().EraseForFrame(f)
}

func (u *entryUpdater) PageDestroyed() {
	u.page.RemoveObserver(u)
}
