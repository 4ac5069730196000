package registry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/frame"
	"github.com/dgnsrekt/wv_bridge/internal/webrequest"
)

type stubFrame struct {
	key  frame.Key
	node frame.NodeID
}

func (f *stubFrame) Key() frame.Key       { return f.key }
func (f *stubFrame) NodeID() frame.NodeID { return f.node }
func (f *stubFrame) Name() string         { return "stub" }

// blockAllDelegate is the minimal delegate used to make records reachable.
type blockAllDelegate struct{}

func (blockAllDelegate) CacheMode() delegate.CacheMode { return delegate.CacheModeDefault }
func (blockAllDelegate) ShouldInterceptRequest(context.Context, *webrequest.Request) *webrequest.Response {
	return nil
}
func (blockAllDelegate) ShouldBlockContentURLs() bool        { return true }
func (blockAllDelegate) ShouldBlockFileURLs() bool           { return true }
func (blockAllDelegate) ShouldBlockNetworkLoads() bool       { return true }
func (blockAllDelegate) ShouldAcceptThirdPartyCookies() bool { return false }
func (blockAllDelegate) OnReceivedResponseHeaders(context.Context, *webrequest.Request, *webrequest.ResponseInfo) {
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})
	return &buf
}

func TestSetAndGetByKey(t *testing.T) {
	r := New()
	key := frame.Key{ProcessID: 1, FrameID: 10}

	if _, ok := r.Get(key); ok {
		t.Fatalf("Get() on empty registry = found; want not found")
	}

	r.Set(key, Record{PendingAssociation: true})
	rec, ok := r.Get(key)
	if !ok {
		t.Fatalf("Get() after Set() = not found; want found")
	}
	if !rec.PendingAssociation {
		t.Fatalf("PendingAssociation = false; want true")
	}

	// Overwrite semantics.
	r.Set(key, Record{PendingAssociation: false})
	rec, _ = r.Get(key)
	if rec.PendingAssociation {
		t.Fatalf("PendingAssociation after overwrite = true; want false")
	}
}

func TestSetForFrameUpdatesBothIndices(t *testing.T) {
	r := New()
	f := &stubFrame{key: frame.Key{ProcessID: 2, FrameID: 1}, node: 200}

	r.SetForFrame(f, Record{PendingAssociation: true})

	if _, ok := r.Get(f.key); !ok {
		t.Fatalf("Get(key) after SetForFrame() = not found; want found")
	}
	rec, ok := r.GetByNode(f.node)
	if !ok {
		t.Fatalf("GetByNode() after SetForFrame() = not found; want found")
	}
	if !rec.PendingAssociation {
		t.Fatalf("node record PendingAssociation = false; want true")
	}
}

func TestNodeRecordReflectsMostRecentSet(t *testing.T) {
	r := New()
	old := &stubFrame{key: frame.Key{ProcessID: 3, FrameID: 1}, node: 300}
	replacement := &stubFrame{key: frame.Key{ProcessID: 3, FrameID: 2}, node: 300}

	b := delegate.NewBinding(blockAllDelegate{})
	r.SetForFrame(old, Record{})
	r.SetForFrame(replacement, Record{Client: b.WeakRef()})

	rec, ok := r.GetByNode(300)
	if !ok {
		t.Fatalf("GetByNode() = not found; want found")
	}
	if _, reachable := rec.Client.Get(); !reachable {
		t.Fatalf("node record delegate unreachable; want most recent record with reachable delegate")
	}
}

func TestNodeEntrySurvivesPartialErase(t *testing.T) {
	r := New()
	old := &stubFrame{key: frame.Key{ProcessID: 4, FrameID: 1}, node: 400}
	replacement := &stubFrame{key: frame.Key{ProcessID: 4, FrameID: 2}, node: 400}

	r.SetForFrame(old, Record{})
	r.SetForFrame(replacement, Record{})
	r.EraseForFrame(old)

	if _, ok := r.Get(old.key); ok {
		t.Fatalf("Get(erased key) = found; want not found")
	}
	if _, ok := r.Get(replacement.key); !ok {
		t.Fatalf("Get(sibling key) = not found; want found")
	}
	if _, ok := r.GetByNode(400); !ok {
		t.Fatalf("GetByNode() after partial erase = not found; want found via remaining instance")
	}

	r.EraseForFrame(replacement)
	if _, ok := r.GetByNode(400); ok {
		t.Fatalf("GetByNode() after last erase = found; want not found")
	}
	if _, ok := r.Get(replacement.key); ok {
		t.Fatalf("Get(last key) after erase = found; want not found")
	}
}

func TestEraseUnknownFrameLogsInvariantViolation(t *testing.T) {
	buf := captureLogs(t)

	r := New()
	f := &stubFrame{key: frame.Key{ProcessID: 5, FrameID: 1}, node: 500}
	r.EraseForFrame(f)

	if !strings.Contains(buf.String(), "invariant violation") {
		t.Fatalf("expected invariant violation log, got %q", buf.String())
	}
}

func TestAssociateChildCopiesParentRecord(t *testing.T) {
	r := New()
	parent := frame.Key{ProcessID: 6, FrameID: 1}
	child := frame.Key{ProcessID: 6, FrameID: 2}

	b := delegate.NewBinding(blockAllDelegate{})
	r.Set(parent, Record{Client: b.WeakRef()})
	r.AssociateChild(parent, child)

	rec, ok := r.Get(child)
	if !ok {
		t.Fatalf("Get(child) after AssociateChild() = not found; want found")
	}
	if _, reachable := rec.Client.Get(); !reachable {
		t.Fatalf("child delegate unreachable; want copy of parent record")
	}
}

func TestAssociateChildWithoutParentIsNoOp(t *testing.T) {
	buf := captureLogs(t)

	r := New()
	parent := frame.Key{ProcessID: 7, FrameID: 1}
	child := frame.Key{ProcessID: 7, FrameID: 2}
	r.AssociateChild(parent, child)

	if _, ok := r.Get(child); ok {
		t.Fatalf("Get(child) after failed AssociateChild() = found; want no partial state")
	}
	if !strings.Contains(buf.String(), "invariant violation") {
		t.Fatalf("expected invariant violation log, got %q", buf.String())
	}
}

func TestChildRecordIsCopyNotReference(t *testing.T) {
	r := New()
	parent := frame.Key{ProcessID: 8, FrameID: 1}
	child := frame.Key{ProcessID: 8, FrameID: 2}

	r.Set(parent, Record{PendingAssociation: false})
	r.AssociateChild(parent, child)

	// Later changes to the parent must not retroactively affect the child.
	r.Set(parent, Record{PendingAssociation: true})

	rec, ok := r.Get(child)
	if !ok {
		t.Fatalf("Get(child) = not found; want found")
	}
	if rec.PendingAssociation {
		t.Fatalf("child PendingAssociation = true; want copy taken at association time")
	}
}

func TestSharedReturnsSameInstance(t *testing.T) {
	if Shared() != Shared() {
		t.Fatalf("Shared() returned different instances; want one process-wide registry")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	const workers = 8
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				f := &stubFrame{
					key:  frame.Key{ProcessID: int64(w), FrameID: int64(i)},
					node: frame.NodeID(w),
				}
				r.SetForFrame(f, Record{})
				r.Get(f.key)
				r.GetByNode(f.node)
				r.EraseForFrame(f)
			}
		}(w)
	}
	wg.Wait()

	if entries := r.Entries(); len(entries) != 0 {
		t.Fatalf("Entries() after balanced set/erase = %d records; want 0", len(entries))
	}
	if nodes := r.Nodes(); len(nodes) != 0 {
		t.Fatalf("Nodes() after balanced set/erase = %d entries; want 0", len(nodes))
	}
}

func TestEntriesAndNodesSnapshots(t *testing.T) {
	r := New()
	a := &stubFrame{key: frame.Key{ProcessID: 9, FrameID: 2}, node: 900}
	b := &stubFrame{key: frame.Key{ProcessID: 9, FrameID: 1}, node: 900}

	r.SetForFrame(a, Record{PendingAssociation: true})
	r.SetForFrame(b, Record{PendingAssociation: true})

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() = %d records; want 2", len(entries))
	}
	if entries[0].Key.FrameID != 1 || entries[1].Key.FrameID != 2 {
		t.Fatalf("Entries() order = %v, %v; want sorted by frame id", entries[0].Key, entries[1].Key)
	}

	nodes := r.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("Nodes() = %d entries; want 1", len(nodes))
	}
	if got := len(nodes[0].Frames); got != 2 {
		t.Fatalf("node instance set size = %d; want 2", got)
	}
	if !nodes[0].PendingAssociation {
		t.Fatalf("node PendingAssociation = false; want true")
	}
}
