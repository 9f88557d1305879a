package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/gitlab-ls/cmd/gitlab-ls/commands"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/logger"
)

var rootCmd = &cobra.Command{
	Use:   "gitlab-ls",
	Short: "Language server completing GitLab references in Markdown",
	Long: `gitlab-ls - completion for GitLab references in Markdown.

Editors talk to gitlab-ls over the Language Server Protocol. While typing
@ (members), % (milestones), ~ (labels) or / (quick actions at the start of a
line), the server suggests matching entries fetched from the GitLab API.

Available commands:
  lsp      - Run the language server (stdio or WebSocket)
  complete - Show completions for a position in a file
  fetch    - List members, milestones or labels of a project
  config   - Inspect configuration
  version  - Show version information

Examples:
  gitlab-ls lsp                                  # Serve over stdin/stdout
  gitlab-ls lsp --websocket 127.0.0.1:7658       # Serve over WebSocket
  gitlab-ls complete README.md 12 8              # Completions at line 12, character 8
  gitlab-ls fetch labels --project group/project # List labels`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(logger.Options{JSON: logJSON, Verbosity: verbosity, Output: os.Stderr}); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.LspCmd)
	rootCmd.AddCommand(commands.CompleteCmd)
	rootCmd.AddCommand(commands.FetchCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *commands.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
