// Command mcp serves SentinelX trust and risk operations as MCP tools
// over stdio, backed by a running API server.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/sentinel-labs/sentinelx/internal/mcpserver"
)

func main() {
	apiURL := os.Getenv("SENTINELX_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	s := mcpserver.NewMCPServer(mcpserver.Config{
		APIURL:   apiURL,
		Identity: os.Getenv("SENTINELX_IDENTITY"),
	})
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintln(os.Stderr, "mcp:", err)
		os.Exit(1)
	}
}
