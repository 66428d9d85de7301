package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

const (
	// Returns the generated TSX of an open document.
	CommandVirtualFile = "astrols/virtualFile"
)

type VirtualFileRequest struct {
	// The URI of an open astro document.
	URI protocol.DocumentURI `json:"uri"`
	// If set, wait until the document reaches this version.
	Version int32 `json:"version,omitempty"`
}

type VirtualFileResponse struct {
	URI     protocol.DocumentURI `json:"uri"`
	Content string               `json:"content"`
}

func (s *Server) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (any, error) {
	switch params.Command {
	case CommandVirtualFile:
		if len(params.Arguments) != 1 {
			return nil, fmt.Errorf("%w: %s takes one argument", jsonrpc2.ErrInvalidParams, params.Command)
		}
		var req VirtualFileRequest
		if err := json.Unmarshal(params.Arguments[0], &req); err != nil {
			return nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
		}
		doc, err := s.document(req.URI)
		if req.Version > 0 {
			doc, err = s.docs.AwaitSnapshot(ctx, req.URI, req.Version)
		}
		if err != nil {
			return nil, err
		}
		vf := doc.Virtual()
		return VirtualFileResponse{URI: vf.URI, Content: string(vf.Content)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", jsonrpc2.ErrMethodNotFound, params.Command)
	}
}
