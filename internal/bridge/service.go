package bridge

import (
	"context"
	"fmt"

	"github.com/dgnsrekt/wv_bridge/internal/frame"
	"github.com/dgnsrekt/wv_bridge/internal/registry"
)

// EngineStatus is the slice of engine state the inspection API needs.
type EngineStatus interface {
	PageCount() int
}

// Service answers inspection queries from registry snapshots. All methods
// are read-only; the registry stays the single source of truth.
type Service struct {
	reg    *registry.Registry
	status EngineStatus
}

// NewService creates an inspection service. status may be nil when no
// engine is running (tests, tooling).
func NewService(reg *registry.Registry, status EngineStatus) *Service {
	return &Service{reg: reg, status: status}
}

// ListFrames returns every frame-key record currently registered.
func (s *Service) ListFrames(ctx context.Context) ([]FrameView, error) {
	_ = ctx
	entries := s.reg.Entries()
	out := make([]FrameView, 0, len(entries))
	for _, e := range entries {
		out = append(out, FrameView{
			ProcessID:          e.Key.ProcessID,
			FrameID:            e.Key.FrameID,
			PendingAssociation: e.PendingAssociation,
			DelegateReachable:  e.DelegateReachable,
		})
	}
	return out, nil
}

// GetFrame returns the record for one (process, frame) key.
func (s *Service) GetFrame(ctx context.Context, processID, frameID int64) (FrameView, error) {
	_ = ctx
	key := frame.Key{ProcessID: processID, FrameID: frameID}
	rec, ok := s.reg.Get(key)
	if !ok {
		return FrameView{}, newError(CodeFrameNotFound, fmt.Sprintf("no record for frame %s", key), nil)
	}
	_, reachable := rec.Client.Get()
	return FrameView{
		ProcessID:          processID,
		FrameID:            frameID,
		PendingAssociation: rec.PendingAssociation,
		DelegateReachable:  reachable,
	}, nil
}

// GetNode returns the entry for one frame-tree node.
func (s *Service) GetNode(ctx context.Context, nodeID int64) (NodeView, error) {
	_ = ctx
	for _, n := range s.reg.Nodes() {
		if int64(n.NodeID) != nodeID {
			continue
		}
		refs := make([]NodeRef, 0, len(n.Frames))
		for _, key := range n.Frames {
			refs = append(refs, NodeRef{ProcessID: key.ProcessID, FrameID: key.FrameID})
		}
		return NodeView{
			NodeID:             nodeID,
			Frames:             refs,
			PendingAssociation: n.PendingAssociation,
			DelegateReachable:  n.DelegateReachable,
		}, nil
	}
	return NodeView{}, newError(CodeNodeNotFound, fmt.Sprintf("no entry for node %d", nodeID), nil)
}

// ListNodes returns every frame-tree-node entry currently registered.
func (s *Service) ListNodes(ctx context.Context) ([]NodeView, error) {
	_ = ctx
	nodes := s.reg.Nodes()
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		refs := make([]NodeRef, 0, len(n.Frames))
		for _, key := range n.Frames {
			refs = append(refs, NodeRef{ProcessID: key.ProcessID, FrameID: key.FrameID})
		}
		out = append(out, NodeView{
			NodeID:             int64(n.NodeID),
			Frames:             refs,
			PendingAssociation: n.PendingAssociation,
			DelegateReachable:  n.DelegateReachable,
		})
	}
	return out, nil
}

// Health reports bridge liveness and registry size.
func (s *Service) Health(ctx context.Context) (HealthView, error) {
	_ = ctx
	pages := 0
	if s.status != nil {
		pages = s.status.PageCount()
	}
	return HealthView{
		Status:     "ok",
		Pages:      pages,
		FrameCount: len(s.reg.Entries()),
		NodeCount:  len(s.reg.Nodes()),
	}, nil
}
