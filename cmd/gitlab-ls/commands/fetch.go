package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/gitlab-ls/completion"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/resource"
)

// FetchCmd lists the resources completion draws from.
var FetchCmd = &cobra.Command{
	Use:   "fetch <members|milestones|labels|quick_actions>",
	Short: "List members, milestones or labels of a project",
	Long: `Fetch one resource kind from GitLab and print it, the same data the
server completes from. Useful for checking the token and base URL.

Examples:
  gitlab-ls fetch members
  gitlab-ls fetch milestones --project group/project`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"members", "milestones", "labels", "quick_actions"},
	RunE:      runFetch,
}

func init() {
	addProjectFlags(FetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	kind, err := resource.ParseKind(args[0])
	if err != nil {
		return errors.WithHint(err, "expected one of members, milestones, labels, quick_actions")
	}

	if kind == resource.KindQuickAction {
		return renderTable(cmd, entryRows(completion.QuickActions()))
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := workingDir()
	if err != nil {
		return err
	}
	project, err := resolveProject(cmd, dir)
	if err != nil {
		return err
	}

	entries, status, err := fetch(cmd.Context(), cfg, project, kind)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		pterm.Warning.Printf("No %ss found in %s\n", kind, project)
		return nil
	}
	if err := renderTable(cmd, entryRows(entries)); err != nil {
		return err
	}
	pterm.Success.Printf("%d %ss in %s, fetched %s\n", status.Entries, kind, project, status.FetchedAt.Format(time.Kitchen))
	return nil
}

func entryRows(entries []resource.Entry) pterm.TableData {
	var rows pterm.TableData
	if len(entries) > 0 {
		rows = append(rows, entryHeader(entries[0].Kind()))
	}
	for _, e := range entries {
		switch v := e.(type) {
		case resource.Member:
			rows = append(rows, []string{"@" + v.Username, v.Name})
		case resource.Milestone:
			rows = append(rows, []string{v.Title, v.DueDate, dueState(v.State)})
		case resource.Label:
			rows = append(rows, []string{v.Name, v.Color, v.Description})
		case resource.QuickAction:
			rows = append(rows, []string{"/" + v.Name, v.ArgHint, v.Description})
		}
	}
	return rows
}

func entryHeader(kind resource.Kind) []string {
	switch kind {
	case resource.KindMember:
		return []string{"Username", "Name"}
	case resource.KindMilestone:
		return []string{"Title", "Due", "State"}
	case resource.KindLabel:
		return []string{"Name", "Color", "Description"}
	default:
		return []string{"Command", "Argument", "Description"}
	}
}

func dueState(s resource.DueState) string {
	switch s {
	case resource.DueUpcoming:
		return "upcoming"
	case resource.DueExpired:
		return "expired"
	default:
		return ""
	}
}
