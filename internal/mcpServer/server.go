package mcpServer

import (
	"net/http"

	"github.com/akolanti/ClinicRAG/internal/rag"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "0.1.0"

// Server exposes the knowledge base to MCP clients (assistants, the booking bot).
type Server struct {
	service rag.Service
	server  *mcp.Server
	logger  *logger_i.Logger
}

func NewServer(service rag.Service) *Server {
	s := &Server{
		service: service,
		server:  mcp.NewServer(&mcp.Implementation{Name: "clinicrag", Version: Version}, nil),
		logger:  logger_i.NewLogger("MCP Server"),
	}
	s.registerTools()
	return s
}

// Handler serves the streamable HTTP transport; one server instance backs every session.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}
