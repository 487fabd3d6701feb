package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
)

const schemaURI = "cyclopath://schema/learning-path"

// PathGenerator produces a learning path for one request.
type PathGenerator interface {
	Generate(ctx context.Context, req extract.Request) ([]learnpath.Node, error)
}

// MCPServer exposes path generation as MCP tools.
type MCPServer struct {
	paths            PathGenerator
	maxDocumentBytes int64
}

// NewMCPServer creates the tool handlers. maxDocumentBytes caps document_path files.
func NewMCPServer(paths PathGenerator, maxDocumentBytes int64) *MCPServer {
	if maxDocumentBytes <= 0 {
		maxDocumentBytes = 20 << 20
	}
	return &MCPServer{paths: paths, maxDocumentBytes: maxDocumentBytes}
}

// Build registers resources and tools on a new MCP server.
func (ms *MCPServer) Build(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Cyclopath",
		version,
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	// --- Resources ---

	s.AddResource(
		mcp.NewResource(
			schemaURI,
			"Learning Path Schema",
			mcp.WithResourceDescription("JSON schema of the generated learning path"),
			mcp.WithMIMEType("application/schema+json"),
		),
		ms.handleSchema,
	)

	// --- Tools ---

	s.AddTool(
		mcp.NewTool(
			"generate_learning_path",
			mcp.WithDescription("Generate an ordered learning path from a video, a GitHub repository, an article and/or a local document. At least one source is required."),
			mcp.WithString("video_url", mcp.Description("YouTube video URL")),
			mcp.WithString("repo_url", mcp.Description("GitHub repository URL or owner/repo")),
			mcp.WithString("article_url", mcp.Description("Blog post or article URL")),
			mcp.WithString("document_path", mcp.Description("Path to a local PDF or image of notes")),
		),
		ms.handleGenerateLearningPath,
	)

	s.AddTool(
		mcp.NewTool(
			"check_prerequisites",
			mcp.WithDescription("Check a learning path JSON array for duplicate ids, unknown or forward prerequisites and cycles."),
			mcp.WithString("path_json", mcp.Required(), mcp.Description("The learning path as a JSON array")),
		),
		ms.handleCheckPrerequisites,
	)

	return s
}

// Run starts the MCP server on Stdio and stops when ctx is done.
func Run(ctx context.Context, paths PathGenerator, maxDocumentBytes int64, version string) error {
	return Serve(ctx, NewMCPServer(paths, maxDocumentBytes).Build(version), os.Stdin, os.Stdout)
}

// Serve speaks MCP over in and out until ctx is done or in is closed.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))

	slog.Info("Starting MCP server on Stdio")
	err := stdio.Listen(ctx, in, out)
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// --- Resource Handlers ---

func (ms *MCPServer) handleSchema(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/schema+json",
			Text:     learnpath.SchemaJSON(),
		},
	}, nil
}

// --- Tool Handlers ---

func (ms *MCPServer) handleGenerateLearningPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	str := func(key string) string {
		v, _ := args[key].(string)
		return strings.TrimSpace(v)
	}

	req := extract.Request{
		VideoURL:   str("video_url"),
		RepoURL:    str("repo_url"),
		ArticleURL: str("article_url"),
	}
	if path := str("document_path"); path != "" {
		doc, err := ms.readDocument(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.Document = doc
	}
	if len(req.Requested()) == 0 {
		return mcp.NewToolResultError("at least one of video_url, repo_url, article_url or document_path is required"), nil
	}

	nodes, err := ms.paths.Generate(ctx, req)
	if err != nil {
		appErr := errors.MapError(err)
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", appErr.Message, err)), nil
	}

	jsonBytes, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal learning path: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (ms *MCPServer) handleCheckPrerequisites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["path_json"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return mcp.NewToolResultError("path_json argument required"), nil
	}

	nodes, err := learnpath.Parse([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid learning path: %v", err)), nil
	}

	report := learnpath.CheckPrerequisites(nodes)
	if report.Empty() {
		return mcp.NewToolResultText(fmt.Sprintf("No problems found in %d nodes.", len(nodes))), nil
	}
	return mcp.NewToolResultText(strings.Join(report.Problems(), "\n")), nil
}

func (ms *MCPServer) readDocument(path string) (*extract.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("document not readable: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("document_path %s is a directory", path)
	}
	if info.Size() > ms.maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds the %d MiB limit", ms.maxDocumentBytes>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document not readable: %w", err)
	}
	return &extract.Document{Data: data, Filename: filepath.Base(path)}, nil
}
