package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing duplicate-scan tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	s := mcpserver.NewMCPServer("dupscan", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(scanDuplicatesTool(), scanDuplicatesHandler)
	s.AddTool(detectChangesTool(), detectChangesHandler)

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func scanDuplicatesTool() mcp.Tool {
	return mcp.NewTool("scan_duplicates",
		mcp.WithDescription("Scan a project for duplicate code and return the deduplication report as JSON: duplicate groups with file locations, consolidation suggestions, and estimated line savings."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Project root directory to scan"),
		),
		mcp.WithBoolean("full",
			mcp.Description("Rescan every file instead of only changed ones (default false)"),
		),
	)
}

func detectChangesTool() mcp.Tool {
	return mcp.NewTool("detect_changes",
		mcp.WithDescription("Classify every tracked file in a project as added, modified, deleted, or unchanged since the last scan, using persisted content fingerprints."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Project root directory to check"),
		),
	)
}

func scanDuplicatesHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("path", "")
	if root == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve path: %v", err)), nil
	}

	coord, st, err := newCoordinator(root, req.GetBool("full", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("setup failed: %v", err)), nil
	}
	defer st.Close()

	report, err := coord.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func detectChangesHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("path", "")
	if root == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve path: %v", err)), nil
	}

	cs, err := detectOnly(root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("change detection failed: %v", err)), nil
	}
	out, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode change set: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
