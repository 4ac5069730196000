// Package frame defines the identity model for frames and pages as seen by
// the association registry. A frame instance is keyed by (process, frame) and
// additionally belongs to a frame-tree node that can outlive individual
// instances across renderer swaps.
package frame

import "fmt"

// Key uniquely identifies one frame instance for its entire lifetime.
type Key struct {
	ProcessID int64
	FrameID   int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ProcessID, k.FrameID)
}

// NodeID identifies a slot in a page's frame tree. Successive frame
// instances can occupy the same node during navigations.
type NodeID int64

// Frame is the engine-side handle for a single frame instance.
type Frame interface {
	Key() Key
	NodeID() NodeID
	// Name returns the frame's name attribute, if any. Used for logging only.
	Name() string
}

// Observer receives frame lifecycle notifications from a Page.
type Observer interface {
	FrameCreated(Frame)
	FrameDeleted(Frame)
	PageDestroyed()
}

// Page is the engine-side handle for one page (a frame tree plus its
// lifecycle event stream).
type Page interface {
	// RootFrame returns the page's root frame, or nil if none exists yet.
	RootFrame() Frame
	AddObserver(Observer)
	RemoveObserver(Observer)
}
