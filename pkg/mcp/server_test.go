package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
)

type MockPathGenerator struct {
	mock.Mock
}

func (m *MockPathGenerator) Generate(ctx context.Context, req extract.Request) ([]learnpath.Node, error) {
	args := m.Called(ctx, req)
	nodes, _ := args.Get(0).([]learnpath.Node)
	return nodes, args.Error(1)
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content type %T", res.Content[0])
	return text.Text
}

func TestGenerateLearningPathTool(t *testing.T) {
	docPath := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(docPath, []byte("%PDF-1.4 notes"), 0o644))

	nodes := []learnpath.Node{{NodeID: "intro", Title: "Intro", DifficultyLevel: 1, Prerequisites: []string{}}}
	paths := new(MockPathGenerator)
	paths.On("Generate", mock.Anything, mock.MatchedBy(func(req extract.Request) bool {
		return req.VideoURL == "https://youtu.be/dQw4w9WgXcQ" &&
			req.Document != nil && req.Document.Filename == "notes.pdf"
	})).Return(nodes, nil).Once()

	ms := NewMCPServer(paths, 0)
	res, err := ms.handleGenerateLearningPath(context.Background(), callTool("generate_learning_path", map[string]any{
		"video_url":     "https://youtu.be/dQw4w9WgXcQ",
		"document_path": docPath,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got []learnpath.Node
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, nodes, got)
	paths.AssertExpectations(t)
}

func TestGenerateLearningPathToolErrors(t *testing.T) {
	paths := new(MockPathGenerator)
	paths.On("Generate", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNoContentExtracted).Once()
	ms := NewMCPServer(paths, 8)
	ctx := context.Background()

	res, err := ms.handleGenerateLearningPath(ctx, callTool("generate_learning_path", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	big := filepath.Join(t.TempDir(), "big.pdf")
	require.NoError(t, os.WriteFile(big, make([]byte, 64), 0o644))
	res, err = ms.handleGenerateLearningPath(ctx, callTool("generate_learning_path", map[string]any{"document_path": big}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "limit")

	res, err = ms.handleGenerateLearningPath(ctx, callTool("generate_learning_path", map[string]any{"article_url": "https://a.example"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Could not extract any content")
}

func TestCheckPrerequisitesTool(t *testing.T) {
	ms := NewMCPServer(new(MockPathGenerator), 0)
	ctx := context.Background()

	clean := `[{"node_id": "a", "title": "A", "description": "", "difficulty_level": 1, "prerequisites": []}]`
	res, err := ms.handleCheckPrerequisites(ctx, callTool("check_prerequisites", map[string]any{"path_json": clean}))
	require.NoError(t, err)
	assert.Equal(t, "No problems found in 1 nodes.", resultText(t, res))

	broken := `[{"node_id": "a", "title": "A", "description": "", "difficulty_level": 1, "prerequisites": ["b"]}]`
	res, err = ms.handleCheckPrerequisites(ctx, callTool("check_prerequisites", map[string]any{"path_json": broken}))
	require.NoError(t, err)
	assert.Equal(t, `node "a" requires unknown node "b"`, resultText(t, res))

	res, err = ms.handleCheckPrerequisites(ctx, callTool("check_prerequisites", map[string]any{"path_json": "{"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSchemaResource(t *testing.T) {
	ms := NewMCPServer(new(MockPathGenerator), 0)

	var req mcp.ReadResourceRequest
	req.Params.URI = schemaURI
	contents, err := ms.handleSchema(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Contains(t, text.Text, "difficulty_level")
}

func TestBuildRegistersTools(t *testing.T) {
	s := NewMCPServer(new(MockPathGenerator), 0).Build("test")
	assert.NotNil(t, s)
}

func TestServeStopsWithContext(t *testing.T) {
	s := NewMCPServer(new(MockPathGenerator), 0).Build("test")
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, s, in, io.Discard) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
