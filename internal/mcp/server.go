package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/codereview/internal/catalog"
	"github.com/joescharf/codereview/internal/review"
)

// CatalogLoader produces a fresh catalog for each request.
type CatalogLoader interface {
	Load() (*catalog.Catalog, error)
}

// Server exposes the review catalog as MCP tools.
type Server struct {
	loader CatalogLoader
	names  review.NameResolver
	scale  int
	now    func() time.Time
}

// NewServer creates the MCP server wrapper. scale is the configured scoring scale.
func NewServer(loader CatalogLoader, names review.NameResolver, scale int) *Server {
	return &Server{
		loader: loader,
		names:  names,
		scale:  scale,
		now:    time.Now,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("codereview", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listReviewsTool())
	srv.AddTool(s.showReviewTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// codereview_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codereview_list_reviews",
		mcp.WithDescription("List code reviews on the review branch, open reviews first. Returns a JSON array with id, title, from, onto, status and open."),
		mcp.WithString("state", mcp.Description("Filter by state: all (default), open, or closed")),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := catalog.ParseState(request.GetString("state", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c, err := s.loader.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load reviews: %v", err)), nil
	}

	entries := c.Filter(state)
	out := make([]review.Summary, len(entries))
	for i, e := range entries {
		out[i] = review.Summarize(e.Index, e.Review)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal reviews: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// codereview_show_review
func (s *Server) showReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("codereview_show_review",
		mcp.WithDescription("Show one review: summary, author, body, reviewer scores and the verdict on the configured scale."),
		mcp.WithNumber("id", mcp.Description("1-based position in the review list (default 1)")),
	)
	return tool, s.handleShowReview
}

func (s *Server) handleShowReview(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetInt("id", 1)

	c, err := s.loader.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load reviews: %v", err)), nil
	}

	r, err := c.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := struct {
		review.Detail
		Tally review.TallyResult `json:"tally"`
	}{
		Detail: review.Describe(id, r, s.names, s.now()),
		Tally:  review.Tally(r.Reviewers, s.scale),
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal review: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
