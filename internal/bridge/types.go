// Package bridge exposes the association layer to operators: a read-only
// inspection service over the registry, an event broker for lifecycle
// feeds, and the typed errors the HTTP API maps to status codes.
package bridge

import "fmt"

const (
	CodeValidation     = "VALIDATION"
	CodeFrameNotFound  = "FRAME_NOT_FOUND"
	CodeNodeNotFound   = "NODE_NOT_FOUND"
	CodeCDPUnavailable = "CDP_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// FrameView is the API projection of one frame-key record.
type FrameView struct {
	ProcessID          int64 `json:"process_id"`
	FrameID            int64 `json:"frame_id"`
	PendingAssociation bool  `json:"pending_association"`
	DelegateReachable  bool  `json:"delegate_reachable"`
}

// NodeRef identifies one frame instance inside a node view.
type NodeRef struct {
	ProcessID int64 `json:"process_id"`
	FrameID   int64 `json:"frame_id"`
}

// NodeView is the API projection of one frame-tree-node entry.
type NodeView struct {
	NodeID             int64     `json:"node_id"`
	Frames             []NodeRef `json:"frames"`
	PendingAssociation bool      `json:"pending_association"`
	DelegateReachable  bool      `json:"delegate_reachable"`
}

// HealthView reports bridge liveness for the health endpoint.
type HealthView struct {
	Status     string `json:"status"`
	Pages      int    `json:"pages"`
	FrameCount int    `json:"frame_count"`
	NodeCount  int    `json:"node_count"`
}
