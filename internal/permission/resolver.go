// Package permission answers agent permission requests without user interaction.
package permission

import (
	"log/slog"

	"github.com/erg0nix/acplink/internal/protocol"
)

// Resolver approves the first allow-class option of every request and
// cancels requests that offer none.
type Resolver struct {
	log *slog.Logger
}

// NewResolver returns a Resolver that logs its decisions to log.
func NewResolver(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{log: log.With("component", "permission")}
}

// Resolve picks the outcome for req.
func (r *Resolver) Resolve(req protocol.RequestPermissionRequest) protocol.RequestPermissionResponse {
	title := ""
	if req.ToolCall.Title != nil {
		title = *req.ToolCall.Title
	}

	for _, opt := range req.Options {
		if opt.Kind.IsAllow() {
			r.log.Info("permission granted",
				"session_id", req.SessionID,
				"tool_call_id", req.ToolCall.ToolCallID,
				"title", title,
				"option", opt.OptionID,
				"kind", opt.Kind,
			)
			return protocol.RequestPermissionResponse{Outcome: protocol.PermissionSelected(opt.OptionID)}
		}
	}

	r.log.Warn("permission cancelled, no allow option offered",
		"session_id", req.SessionID,
		"tool_call_id", req.ToolCall.ToolCallID,
		"title", title,
		"options", len(req.Options),
	)
	return protocol.RequestPermissionResponse{Outcome: protocol.PermissionCancelled()}
}
