// Package api serves the bridge's inspection surface: registry snapshots,
// health, and a live lifecycle event stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/wv_bridge/internal/bridge"
)

// Service is the inspection surface the API exposes.
type Service interface {
	ListFrames(ctx context.Context) ([]bridge.FrameView, error)
	GetFrame(ctx context.Context, processID, frameID int64) (bridge.FrameView, error)
	ListNodes(ctx context.Context) ([]bridge.NodeView, error)
	GetNode(ctx context.Context, nodeID int64) (bridge.NodeView, error)
	Health(ctx context.Context) (bridge.HealthView, error)
}

// NewServer builds the HTTP handler. broker may be nil to disable the event
// stream endpoint.
func NewServer(svc Service, broker *bridge.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("WV Bridge API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerFrameHandlers(api, svc)
	registerHealthHandlers(api, svc)

	if broker != nil {
		router.Get("/api/v1/events", sseHandler(broker))
	}

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *bridge.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case bridge.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case bridge.CodeFrameNotFound, bridge.CodeNodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case bridge.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
