package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/batchfs/internal/fileops"
	"github.com/teemow/batchfs/internal/resources"
	"github.com/teemow/batchfs/internal/server"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(stdout, stderr io.Writer, outputFile string) error {
	// Tools are introspected only, so an in-memory filesystem is enough
	serverContext, err := server.NewServerContext(context.Background(), server.Config{
		Filesystem: fileops.NewMemoryFilesystem(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}

	markdown := generateToolsMarkdown(tools)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(stderr, "Documentation written to: %s\n", outputFile)
		return nil
	}

	_, err = io.WriteString(stdout, markdown)
	return err
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document provides a complete reference of all tools available when running batchfs as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	sb.WriteString("## Table of Contents\n\n")
	for _, tool := range tools {
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", tool.Name, tool.Name))
	}
	sb.WriteString("- [Resources](#resources)\n\n")

	sb.WriteString("## Tools\n\n")
	for _, tool := range tools {
		sb.WriteString(generateToolMarkdown(tool))
		sb.WriteString("\n")
	}

	sb.WriteString("## Resources\n\n")
	sb.WriteString(fmt.Sprintf("- `%s`: filesystem root, read-only mode, batch option defaults and limits\n", resources.ServerConfigURI))
	sb.WriteString(fmt.Sprintf("- `%s`: supported operation types and the arguments each one uses\n", resources.OperationsURI))

	return sb.String()
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))

	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	if hints := annotationHints(tool.Annotations); hints != "" {
		sb.WriteString(fmt.Sprintf("**Hints:** %s\n\n", hints))
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")
		writeProperties(&sb, tool.InputSchema.Properties, tool.InputSchema.Required, 0)
		sb.WriteString("\n")
	}

	return sb.String()
}

// writeProperties renders schema properties as a nested list. Array items
// and object properties are rendered one level deeper.
func writeProperties(sb *strings.Builder, props map[string]any, required []string, depth int) {
	propNames := make([]string, 0, len(props))
	for name := range props {
		propNames = append(propNames, name)
	}
	sort.Strings(propNames)

	indent := strings.Repeat("  ", depth)
	for _, name := range propNames {
		propMap, ok := props[name].(map[string]any)
		if !ok {
			continue
		}

		requiredStr := "optional"
		if contains(required, name) {
			requiredStr = "required"
		}

		sb.WriteString(fmt.Sprintf("%s- `%s` (%s, %s): ", indent, name, getPropertyType(propMap), requiredStr))
		if desc, ok := propMap["description"].(string); ok {
			sb.WriteString(desc)
		} else {
			sb.WriteString(fmt.Sprintf("%s parameter", getPropertyType(propMap)))
		}
		if enum := stringSlice(propMap["enum"]); len(enum) > 0 {
			sb.WriteString(fmt.Sprintf(". One of: `%s`", strings.Join(enum, "`, `")))
		}
		if def, ok := propMap["default"]; ok {
			sb.WriteString(fmt.Sprintf(". Default: `%v`", def))
		}
		sb.WriteString("\n")

		nested := propMap
		if items, ok := propMap["items"].(map[string]any); ok {
			nested = items
		}
		if children, ok := nested["properties"].(map[string]any); ok {
			writeProperties(sb, children, stringSlice(nested["required"]), depth+1)
		}
	}
}

func annotationHints(a mcp.ToolAnnotation) string {
	var hints []string
	add := func(name string, v *bool) {
		if v != nil && *v {
			hints = append(hints, name)
		}
	}
	add("read-only", a.ReadOnlyHint)
	add("destructive", a.DestructiveHint)
	add("idempotent", a.IdempotentHint)
	add("open-world", a.OpenWorldHint)
	return strings.Join(hints, ", ")
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, val := range vals {
			out = append(out, fmt.Sprint(val))
		}
		return out
	}
	return nil
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
