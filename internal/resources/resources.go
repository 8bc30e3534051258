package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/batchfs/internal/fileops"
	"github.com/teemow/batchfs/internal/server"
	"github.com/teemow/batchfs/internal/tools/batch"
)

// Resource URIs.
const (
	ServerConfigURI = "batchfs://server/config"
	OperationsURI   = "batchfs://operations"
)

// ServerConfig is the body of the server config resource.
type ServerConfig struct {
	Root     string        `json:"root"`
	ReadOnly bool          `json:"readOnly"`
	Defaults batch.Options `json:"defaults"`
	Limits   OptionLimits  `json:"limits"`
}

// OptionLimits lists the accepted ranges for batch options.
type OptionLimits struct {
	MinMaxConcurrent int `json:"minMaxConcurrent"`
	MaxMaxConcurrent int `json:"maxMaxConcurrent"`
	MinTimeoutMs     int `json:"minTimeoutMs"`
	MaxRetryAttempts int `json:"maxRetryAttempts"`
}

// OperationInfo describes one operation type.
type OperationInfo struct {
	Type                fileops.Kind `json:"type"`
	Allowed             bool         `json:"allowed"`
	UsesContent         bool         `json:"usesContent"`
	RequiresDestination bool         `json:"requiresDestination"`
}

// RegisterServerResources registers the server description resources.
func RegisterServerResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	configResource := mcp.NewResource(
		ServerConfigURI,
		"Server Configuration",
		mcp.WithResourceDescription("Filesystem root, read-only mode and the batch option defaults applied to omitted options"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(configResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(request.Params.URI, BuildServerConfig(sc))
	})

	operationsResource := mcp.NewResource(
		OperationsURI,
		"Supported Operations",
		mcp.WithResourceDescription("Operation types accepted by batch_file_operations and the arguments each one uses"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(operationsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(request.Params.URI, BuildOperations(sc.ReadOnly()))
	})

	return nil
}

// BuildServerConfig describes the configuration of sc.
func BuildServerConfig(sc *server.ServerContext) ServerConfig {
	return ServerConfig{
		Root:     sc.Root(),
		ReadOnly: sc.ReadOnly(),
		Defaults: sc.Defaults(),
		Limits: OptionLimits{
			MinMaxConcurrent: batch.MinMaxConcurrent,
			MaxMaxConcurrent: batch.MaxMaxConcurrent,
			MinTimeoutMs:     batch.MinTimeoutMs,
			MaxRetryAttempts: batch.MaxRetryAttempts,
		},
	}
}

// BuildOperations lists every operation type in declaration order.
func BuildOperations(readOnly bool) []OperationInfo {
	ops := make([]OperationInfo, 0, len(fileops.Kinds))
	for _, k := range fileops.Kinds {
		ops = append(ops, OperationInfo{
			Type:                k,
			Allowed:             !readOnly || k == fileops.KindRead,
			UsesContent:         k == fileops.KindCreate || k == fileops.KindUpdate,
			RequiresDestination: k.NeedsDestination(),
		})
	}
	return ops
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
