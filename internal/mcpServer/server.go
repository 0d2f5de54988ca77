// Package mcpServer exposes one built docset to MCP clients: its retrieval
// tool under the derived function name, and an ask tool backed by the agent.
package mcpServer

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/akolanti/DocsetAgent/internal/agent"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

const Version = "0.1.0"

var (
	ErrMissingRetriever = errors.New("mcp: retriever is required")
	ErrMissingTool      = errors.New("mcp: retrieval tool has no function name")
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, k uint64) ([]vectorDB.Hit, error)
}

type Asker interface {
	Run(ctx context.Context, query string, history []agent.Turn) (string, error)
}

// Ports is what one docset runtime provides. Agent is optional.
type Ports struct {
	Docset    docModel.Docset
	Tool      docModel.RetrievalToolSpec
	Retriever Retriever
	Agent     Asker
	TopK      uint64
}

func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	if p.Tool.FunctionName == "" {
		return ErrMissingTool
	}
	return nil
}

type Server struct {
	ports  *Ports
	server *mcp.Server
	logger *logger_i.Logger
}

func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if ports.TopK == 0 {
		ports.TopK = defaultTopK
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "docset-agent",
			Version: Version,
		}, nil),
		logger: logger_i.NewLogger("mcp").With("docsetId", ports.Docset.ID),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Serving docset over stdio", "tool", s.ports.Tool.FunctionName)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
