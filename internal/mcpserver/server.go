package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all SentinelX tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("sentinelx", "1.0.0")
	client := NewSentinelClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolScanText, h.HandleScanText)
	s.AddTool(ToolRedactText, h.HandleRedactText)
	s.AddTool(ToolScoreLogin, h.HandleScoreLogin)
	s.AddTool(ToolEvaluateTransfer, h.HandleEvaluateTransfer)
	s.AddTool(ToolGetTrustState, h.HandleGetTrustState)
	s.AddTool(ToolCheckAction, h.HandleCheckAction)
	s.AddTool(ToolGetAuditStats, h.HandleGetAuditStats)
	s.AddTool(ToolVerifyAuditProof, h.HandleVerifyAuditProof)

	return s
}
