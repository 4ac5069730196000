// Package registry is the process-wide association store linking frame
// identities to delegate records. Two indices resolve to the same record: the
// (process, frame) key, and the frame-tree node id that stays valid while a
// node's frame instances are swapped out during navigations. Both indices are
// mutated under one lock so a reader can never observe them out of sync.
package registry

import (
	"log/slog"
	"sync"

	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/frame"
)

// Record is the stored association state for a frame or node.
// PendingAssociation marks the window where a delegate will be attached but
// is not yet known; Client unreachable with PendingAssociation=false means
// the delegate was attached and later collected. Both read back as "no
// delegate" through a handle.
type Record struct {
	PendingAssociation bool
	Client             delegate.Ref
}

// nodeEntry tracks the frame instances currently occupying one frame-tree
// node alongside the node's most recently set record. The entry is dropped
// only when the last instance goes away.
type nodeEntry struct {
	frames map[frame.Key]struct{}
	record Record
}

// Registry is the dual-indexed association store. The zero value is not
// usable; construct with New or use the process-wide Shared instance.
type Registry struct {
	mu     sync.Mutex
	byKey  map[frame.Key]Record
	byNode map[frame.NodeID]*nodeEntry
}

// New creates an empty registry. Production code uses Shared; New exists so
// tests can run against isolated instances.
func New() *Registry {
	return &Registry{
		byKey:  make(map[frame.Key]Record),
		byNode: make(map[frame.NodeID]*nodeEntry),
	}
}

var shared = sync.OnceValue(New)

// Shared returns the process-wide registry, created on first use. It lives
// for the process lifetime; there is no teardown.
func Shared() *Registry {
	return shared()
}

// Set upserts the record for a frame key. Overwrite semantics, no error
// conditions.
func (r *Registry) Set(key frame.Key, rec Record) {
	r.mu.Lock()
	r.byKey[key] = rec
	r.mu.Unlock()
}

// Get returns the record stored for a frame key.
func (r *Registry) Get(key frame.Key) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byKey[key]
	return rec, ok
}

// GetByNode returns the record most recently set for any frame instance on
// the node, regardless of which instance a caller knows about.
func (r *Registry) GetByNode(id frame.NodeID) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byNode[id]
	if !ok {
		return Record{}, false
	}
	return entry.record, true
}

// SetForFrame updates both indices in one critical section: the frame joins
// its node's instance set and the node record is overwritten, then the frame
// key record is overwritten.
func (r *Registry) SetForFrame(f frame.Frame, rec Record) {
	key := f.Key()
	nodeID := f.NodeID()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byNode[nodeID]
	if !ok {
		entry = &nodeEntry{frames: make(map[frame.Key]struct{})}
		r.byNode[nodeID] = entry
	}
	// Overwriting the node record is harmless when other instances share the
	// node; the node always reflects the most recent association.
	entry.record = rec
	entry.frames[key] = struct{}{}

	// Key entries are 1:1 with frame instances.
	r.byKey[key] = rec
}

// EraseForFrame removes the frame from both indices. The node entry survives
// while sibling or replacement instances still reference it.
func (r *Registry) EraseForFrame(f frame.Frame) {
	key := f.Key()
	nodeID := f.NodeID()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byNode[nodeID]
	if !ok {
		slog.Error("registry invariant violation: erase for unknown node",
			"frame_key", key.String(), "node_id", int64(nodeID))
	} else {
		if _, present := entry.frames[key]; !present {
			slog.Error("registry invariant violation: frame missing from node instance set",
				"frame_key", key.String(), "node_id", int64(nodeID))
		}
		delete(entry.frames, key)
		if len(entry.frames) == 0 {
			delete(r.byNode, nodeID)
		}
	}

	delete(r.byKey, key)
}

// AssociateChild copies the parent's current record to the child key,
// covering subframes created outside the generic frame-created path. A
// missing parent record is a lifecycle-protocol violation; nothing is
// written.
func (r *Registry) AssociateChild(parent, child frame.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byKey[parent]
	if !ok {
		slog.Error("registry invariant violation: associate child with no parent record",
			"parent_key", parent.String(), "child_key", child.String())
		return
	}
	r.byKey[child] = rec
}
