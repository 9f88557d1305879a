package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/gitlab-ls/completion"
	"github.com/teranos/gitlab-ls/config"
	"github.com/teranos/gitlab-ls/document"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/gitlab"
	"github.com/teranos/gitlab-ls/logger"
	"github.com/teranos/gitlab-ls/resource"
	"github.com/teranos/gitlab-ls/trigger"
)

// CompleteCmd prints the completions an editor would receive.
var CompleteCmd = &cobra.Command{
	Use:   "complete <file> <line> <character>",
	Short: "Show completions for a position in a file",
	Long: `Show the completions the server would offer at a position in a file.

line and character are zero-based, character counting UTF-16 code units as
editors do. The project defaults to the git remote of the repository holding
the file.

Examples:
  gitlab-ls complete README.md 0 12
  gitlab-ls complete notes.md 4 3 --project group/project`,
	Args: cobra.ExactArgs(3),
	RunE: runComplete,
}

func init() {
	addProjectFlags(CompleteCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	file := args[0]
	line, err := parsePosition("line", args[1])
	if err != nil {
		return err
	}
	character, err := parsePosition("character", args[2])
	if err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", file)
	}
	text := string(data)

	cursor := document.OffsetAt(text, protocol.Position{Line: line, Character: character})
	trig, ok := trigger.Detect(text, cursor)
	if !ok {
		pterm.Info.Println("No GitLab reference at this position")
		return nil
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	entries := completion.QuickActions()
	if trig.Kind != resource.KindQuickAction {
		dir, err := absDir(file)
		if err != nil {
			return err
		}
		project, err := resolveProject(cmd, dir)
		if err != nil {
			return err
		}
		entries, _, err = fetch(cmd.Context(), cfg, project, trig.Kind)
		if err != nil {
			return err
		}
	}

	resolver := completion.NewResolver(cfg.Completion.MaxCandidates, cfg.Completion.QuickActionSnippets)
	result, err := resolver.Resolve(cmd.Context(), trig, entries)
	if err != nil {
		return err
	}

	pterm.Info.Printf("%s completion for %q at offset %d\n", trig.Kind, trig.Prefix, trig.Offset)
	if len(result.Candidates) == 0 {
		pterm.Warning.Println("No matching entries")
		return nil
	}
	if err := renderTable(cmd, candidateRows(result.Candidates)); err != nil {
		return err
	}
	if result.Truncated {
		pterm.Warning.Printf("Showing the first %d matches (completion.max_candidates)\n", len(result.Candidates))
	}
	return nil
}

func parsePosition(name, arg string) (protocol.UInteger, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidRequest, "%s must be a non-negative integer, got %q", name, arg)
	}
	return protocol.UInteger(n), nil
}

// fetch retrieves kind for project straight from GitLab, bypassing any cache.
// fetch reads one kind through a resource cache scoped to the command, the
// same path the server takes.
func fetch(ctx context.Context, cfg *config.Config, project string, kind resource.Kind) ([]resource.Entry, resource.Status, error) {
	client, err := gitlab.FromConfig(cfg.GitLab, logger.ComponentLogger("gitlab"))
	if err != nil {
		return nil, resource.Status{}, err
	}
	cache := resource.NewCache(client, resource.Options{
		TTL:          cfg.Cache.TTL(),
		FetchTimeout: cfg.Cache.FetchTimeout(),
		Logger:       logger.ComponentLogger("cache"),
	})
	defer cache.Close()

	entries, err := cache.Get(ctx, project, kind)
	return entries, cache.Status(project, kind), err
}

func candidateRows(candidates []completion.Candidate) pterm.TableData {
	rows := pterm.TableData{{"Label", "Inserts", "Detail"}}
	for _, c := range candidates {
		insert := c.InsertText
		if c.Snippet {
			insert += " (snippet)"
		}
		rows = append(rows, []string{c.Label, insert, c.Detail})
	}
	return rows
}

func renderTable(cmd *cobra.Command, rows pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
