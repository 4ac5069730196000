package registry

import (
	"sort"

	"github.com/dgnsrekt/wv_bridge/internal/frame"
)

// Entry is a point-in-time view of one frame-key record, for inspection.
type Entry struct {
	Key                frame.Key
	PendingAssociation bool
	DelegateReachable  bool
}

// NodeView is a point-in-time view of one frame-tree-node entry.
type NodeView struct {
	NodeID             frame.NodeID
	Frames             []frame.Key
	PendingAssociation bool
	DelegateReachable  bool
}

// Entries snapshots every frame-key record under the registry lock. Ordering
// is stable (process id, then frame id) so API output is deterministic.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.byKey))
	for key, rec := range r.byKey {
		_, reachable := rec.Client.Get()
		out = append(out, Entry{
			Key:                key,
			PendingAssociation: rec.PendingAssociation,
			DelegateReachable:  reachable,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ProcessID != out[j].Key.ProcessID {
			return out[i].Key.ProcessID < out[j].Key.ProcessID
		}
		return out[i].Key.FrameID < out[j].Key.FrameID
	})
	return out
}

// Nodes snapshots every frame-tree-node entry under the registry lock.
func (r *Registry) Nodes() []NodeView {
	r.mu.Lock()
	out := make([]NodeView, 0, len(r.byNode))
	for id, entry := range r.byNode {
		frames := make([]frame.Key, 0, len(entry.frames))
		for key := range entry.frames {
			frames = append(frames, key)
		}
		sort.Slice(frames, func(i, j int) bool {
			if frames[i].ProcessID != frames[j].ProcessID {
				return frames[i].ProcessID < frames[j].ProcessID
			}
			return frames[i].FrameID < frames[j].FrameID
		})
		_, reachable := entry.record.Client.Get()
		out = append(out, NodeView{
			NodeID:             id,
			Frames:             frames,
			PendingAssociation: entry.record.PendingAssociation,
			DelegateReachable:  reachable,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}
