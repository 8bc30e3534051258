package fileops_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/batchfs/internal/fileops"
	"github.com/teemow/batchfs/internal/server"
	"github.com/teemow/batchfs/internal/tools/batch"
	"github.com/teemow/batchfs/internal/tools/common"
)

// ToolBatchFileOperations is the name of the batch tool.
const ToolBatchFileOperations = "batch_file_operations"

// RegisterFileOperationTools registers the batch file operation tool with the
// MCP server. In read-only mode the tool only accepts read operations and is
// annotated accordingly.
func RegisterFileOperationTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	s.AddTool(newBatchTool(sc), common.InstrumentedToolHandler(ToolBatchFileOperations, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleBatchFileOperations(ctx, request, sc)
		}))

	return nil
}

func newBatchTool(sc *server.ServerContext) mcp.Tool {
	defaults := sc.Defaults()
	readOnly := sc.ReadOnly()

	kinds := make([]string, 0, len(fileops.Kinds))
	for _, k := range fileops.Kinds {
		kinds = append(kinds, string(k))
	}
	description := "Execute a batch of file operations (create, read, update, delete, copy, move) " +
		"with bounded concurrency, optional grouping by type and per-operation retry. " +
		"Returns a JSON summary with per-operation results and errors."
	if readOnly {
		kinds = []string{string(fileops.KindRead)}
		description = "Read a batch of files with bounded concurrency and per-operation retry. " +
			"The server is read-only, so only read operations are accepted. " +
			"Returns a JSON summary with per-operation results and errors."
	}

	return mcp.NewTool(ToolBatchFileOperations,
		mcp.WithDescription(description),
		mcp.WithTitleAnnotation("Batch file operations"),
		mcp.WithReadOnlyHintAnnotation(readOnly),
		mcp.WithDestructiveHintAnnotation(!readOnly),
		mcp.WithIdempotentHintAnnotation(readOnly),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithArray("operations",
			mcp.Required(),
			mcp.MinItems(1),
			mcp.Description("Operations to execute. Results are reported in this order."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type": map[string]any{
						"type":        "string",
						"enum":        kinds,
						"description": "Operation type",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "Target path, relative to the server root",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "File content for create and update",
					},
					"destination": map[string]any{
						"type":        "string",
						"description": "Destination path for copy and move",
					},
					"encoding": map[string]any{
						"type":        "string",
						"enum":        []string{string(fileops.EncodingUTF8), string(fileops.EncodingBase64)},
						"description": "Content encoding (default: utf8)",
					},
				},
				"required": []string{"type", "path"},
			}),
		),
		mcp.WithObject("options",
			mcp.Description("Execution options. Omitted fields use the server defaults."),
			mcp.Properties(map[string]any{
				"maxConcurrent": map[string]any{
					"type":        "integer",
					"minimum":     batch.MinMaxConcurrent,
					"maximum":     batch.MaxMaxConcurrent,
					"default":     defaults.MaxConcurrent,
					"description": "Maximum number of operations in flight",
				},
				"timeoutMs": map[string]any{
					"type":        "integer",
					"minimum":     batch.MinTimeoutMs,
					"default":     defaults.TimeoutMs,
					"description": "Deadline for the whole batch in milliseconds",
				},
				"stopOnError": map[string]any{
					"type":        "boolean",
					"default":     defaults.StopOnError,
					"description": "Stop scheduling operations after the first failure",
				},
				"retryAttempts": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"maximum":     batch.MaxRetryAttempts,
					"default":     defaults.RetryAttempts,
					"description": "Retries per operation after the first attempt",
				},
				"groupByType": map[string]any{
					"type":        "boolean",
					"default":     defaults.GroupByType,
					"description": "Run operations of the same type together, groups in first-seen order",
				},
			}),
		),
	)
}

func handleBatchFileOperations(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			sc.Logger().Error("batch tool panicked", "tool", ToolBatchFileOperations, "panic", r)
			result, err = mcp.NewToolResultError(fmt.Sprintf("Error: %v", r)), nil
		}
	}()

	req, err := sc.Validator().Parse(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError("Error: " + err.Error()), nil
	}

	summary := sc.Coordinator().Run(ctx, req)

	if inv := common.InvocationFromContext(ctx); inv != nil {
		inv.WithBatch(summary.BatchID, summary.Total, summary.Successful, summary.Failed).
			WithPaths(operationPaths(req.Operations))
	}

	text, err := batch.FormatSummary(summary)
	if err != nil {
		return mcp.NewToolResultError("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

// operationPaths lists every path a batch touches in operation order,
// without duplicates.
func operationPaths(ops []fileops.Operation) []string {
	seen := make(map[string]struct{}, len(ops))
	paths := make([]string, 0, len(ops))
	add := func(p string) {
		if p = strings.TrimSpace(p); p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	for _, op := range ops {
		add(op.Path)
		add(op.Destination)
	}
	return paths
}
