package bridge

import (
	"context"
	"runtime"
	"testing"

	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/frame"
	"github.com/dgnsrekt/wv_bridge/internal/registry"
	"github.com/dgnsrekt/wv_bridge/internal/webrequest"
)

type stubFrame struct {
	key  frame.Key
	node frame.NodeID
	name string
}

func (f *stubFrame) Key() frame.Key       { return f.key }
func (f *stubFrame) NodeID() frame.NodeID { return f.node }
func (f *stubFrame) Name() string         { return f.name }

type nopDelegate struct{}

func (nopDelegate) CacheMode() delegate.CacheMode { return delegate.CacheModeDefault }
func (nopDelegate) ShouldInterceptRequest(context.Context, *webrequest.Request) *webrequest.Response {
	return nil
}
func (nopDelegate) ShouldBlockContentURLs() bool        { return false }
func (nopDelegate) ShouldBlockFileURLs() bool           { return false }
func (nopDelegate) ShouldBlockNetworkLoads() bool       { return false }
func (nopDelegate) ShouldAcceptThirdPartyCookies() bool { return false }
func (nopDelegate) OnReceivedResponseHeaders(context.Context, *webrequest.Request, *webrequest.ResponseInfo) {
}

type fixedPages int

func (p fixedPages) PageCount() int { return int(p) }

func TestServiceFrameLookup(t *testing.T) {
	reg := registry.New()
	b := delegate.NewBinding(nopDelegate{})
	f := &stubFrame{key: frame.Key{ProcessID: 3, FrameID: 9}, node: 40}
	reg.SetForFrame(f, registry.Record{Client: b.WeakRef()})

	svc := NewService(reg, nil)
	ctx := context.Background()

	view, err := svc.GetFrame(ctx, 3, 9)
	if err != nil {
		t.Fatalf("GetFrame() error = %v", err)
	}
	if !view.DelegateReachable {
		t.Fatalf("DelegateReachable = false, want true")
	}
	runtime.KeepAlive(b)

	if _, err := svc.GetFrame(ctx, 3, 999); err == nil {
		t.Fatal("GetFrame() unknown key: expected error")
	} else {
		coded, ok := err.(*CodedError)
		if !ok || coded.Code != CodeFrameNotFound {
			t.Fatalf("GetFrame() error = %v, want CodedError %s", err, CodeFrameNotFound)
		}
	}
}

func TestServiceNodeLookup(t *testing.T) {
	reg := registry.New()
	b := delegate.NewBinding(nopDelegate{})
	f := &stubFrame{key: frame.Key{ProcessID: 3, FrameID: 9}, node: 40}
	reg.SetForFrame(f, registry.Record{Client: b.WeakRef()})

	svc := NewService(reg, nil)
	ctx := context.Background()

	view, err := svc.GetNode(ctx, 40)
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if len(view.Frames) != 1 || view.Frames[0].FrameID != 9 {
		t.Fatalf("node frames = %+v, want one frame 3:9", view.Frames)
	}
	runtime.KeepAlive(b)

	if _, err := svc.GetNode(ctx, 777); err == nil {
		t.Fatal("GetNode() unknown node: expected error")
	} else {
		coded, ok := err.(*CodedError)
		if !ok || coded.Code != CodeNodeNotFound {
			t.Fatalf("GetNode() error = %v, want CodedError %s", err, CodeNodeNotFound)
		}
	}
}

func TestServiceHealth(t *testing.T) {
	reg := registry.New()
	reg.Set(frame.Key{ProcessID: 1, FrameID: 1}, registry.Record{PendingAssociation: true})

	svc := NewService(reg, fixedPages(2))
	view, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if view.Status != "ok" || view.Pages != 2 || view.FrameCount != 1 {
		t.Fatalf("Health() = %+v, want ok/2 pages/1 frame", view)
	}
}

func TestCodedErrorFormat(t *testing.T) {
	err := newError(CodeValidation, "bad input", nil)
	if got, want := err.Error(), "VALIDATION: bad input"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
