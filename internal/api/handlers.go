package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/wv_bridge/internal/bridge"
)

func registerFrameHandlers(api huma.API, svc Service) {
	type framesOutput struct {
		Body struct {
			Frames []bridge.FrameView `json:"frames"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-frames", Method: http.MethodGet, Path: "/api/v1/frames", Summary: "List registered frames", Tags: []string{"Frames"}},
		func(ctx context.Context, input *struct{}) (*framesOutput, error) {
			frames, err := svc.ListFrames(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &framesOutput{}
			out.Body.Frames = frames
			return out, nil
		})

	type frameInput struct {
		ProcessID int64 `path:"process_id"`
		FrameID   int64 `path:"frame_id"`
	}
	type frameOutput struct {
		Body bridge.FrameView
	}
	huma.Register(api, huma.Operation{OperationID: "get-frame", Method: http.MethodGet, Path: "/api/v1/frames/{process_id}/{frame_id}", Summary: "Get one frame's association record", Tags: []string{"Frames"}},
		func(ctx context.Context, input *frameInput) (*frameOutput, error) {
			view, err := svc.GetFrame(ctx, input.ProcessID, input.FrameID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &frameOutput{}
			out.Body = view
			return out, nil
		})

	type nodesOutput struct {
		Body struct {
			Nodes []bridge.NodeView `json:"nodes"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-nodes", Method: http.MethodGet, Path: "/api/v1/nodes", Summary: "List frame-tree-node entries", Tags: []string{"Nodes"}},
		func(ctx context.Context, input *struct{}) (*nodesOutput, error) {
			nodes, err := svc.ListNodes(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &nodesOutput{}
			out.Body.Nodes = nodes
			return out, nil
		})

	type nodeInput struct {
		NodeID int64 `path:"node_id"`
	}
	type nodeOutput struct {
		Body bridge.NodeView
	}
	huma.Register(api, huma.Operation{OperationID: "get-node", Method: http.MethodGet, Path: "/api/v1/nodes/{node_id}", Summary: "Get one frame-tree-node entry", Tags: []string{"Nodes"}},
		func(ctx context.Context, input *nodeInput) (*nodeOutput, error) {
			view, err := svc.GetNode(ctx, input.NodeID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &nodeOutput{}
			out.Body = view
			return out, nil
		})
}

func registerHealthHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body bridge.HealthView
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			view, err := svc.Health(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &healthOutput{}
			out.Body = view
			return out, nil
		})
}
