package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/codereview/internal/catalog"
	"github.com/joescharf/codereview/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio so agents can
read this repository's reviews. Configure it with:

  {
    "mcpServers": {
      "codereview": { "command": "codereview", "args": ["mcp"] }
    }
  }

Available tools: codereview_list_reviews, codereview_show_review`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		gc, _, err := getGit()
		if err != nil {
			return err
		}
		names, err := getResolver()
		if err != nil {
			return err
		}

		srv := mcp.NewServer(catalog.NewLoader(gc, s.Branch), names, s.Scoring)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
