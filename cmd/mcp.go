package cmd

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/batchfs/internal/resources"
	"github.com/teemow/batchfs/internal/server"
	"github.com/teemow/batchfs/internal/tools/fileops_tools"
)

const serverInstructions = `batchfs executes batches of file operations. Use batch_file_operations to
create, read, update (append), delete, copy or move files in one call.
Read batchfs://server/config for the filesystem root, read-only mode and the
defaults applied to omitted options.`

// newMCPServer creates the MCP server with every tool and resource registered.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("batchfs", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
		mcpserver.WithInstructions(serverInstructions),
		mcpserver.WithRecovery(),
	)

	if err := registerAllTools(mcpSrv, sc); err != nil {
		return nil, err
	}
	return mcpSrv, nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "File Operations",
			register: func() error {
				return fileops_tools.RegisterFileOperationTools(mcpSrv, sc)
			},
		},
		{
			name: "Server Resources",
			register: func() error {
				return resources.RegisterServerResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}
