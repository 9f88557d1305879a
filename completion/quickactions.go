package completion

import "github.com/teranos/gitlab-ls/resource"

var quickActions = []resource.QuickAction{
	{Name: "assign", Description: "Assign users", ArgHint: "@username"},
	{Name: "unassign", Description: "Remove assignees", ArgHint: "@username"},
	{Name: "reassign", Description: "Replace all assignees", ArgHint: "@username"},
	{Name: "cc", Description: "Mention a user", ArgHint: "@username"},
	{Name: "label", Description: "Add labels", ArgHint: "~label"},
	{Name: "unlabel", Description: "Remove labels", ArgHint: "~label"},
	{Name: "relabel", Description: "Replace all labels", ArgHint: "~label"},
	{Name: "milestone", Description: "Set milestone", ArgHint: "%milestone"},
	{Name: "remove_milestone", Description: "Remove milestone"},
	{Name: "due", Description: "Set due date", ArgHint: "date"},
	{Name: "remove_due_date", Description: "Remove due date"},
	{Name: "title", Description: "Change title", ArgHint: "title"},
	{Name: "relate", Description: "Mark as related to other issues", ArgHint: "#issue"},
	{Name: "unrelate", Description: "Remove a related issue link", ArgHint: "#issue"},
	{Name: "blocks", Description: "Mark as blocking other issues", ArgHint: "#issue"},
	{Name: "blocked_by", Description: "Mark as blocked by other issues", ArgHint: "#issue"},
	{Name: "duplicate", Description: "Close as a duplicate of another issue", ArgHint: "#issue"},
	{Name: "estimate", Description: "Set time estimate", ArgHint: "1w 3d 2h 14m"},
	{Name: "remove_estimate", Description: "Remove time estimate"},
	{Name: "spend", Description: "Add time spent", ArgHint: "1h 30m"},
	{Name: "weight", Description: "Set weight", ArgHint: "0"},
	{Name: "clear_weight", Description: "Clear weight"},
	{Name: "confidential", Description: "Make confidential"},
	{Name: "todo", Description: "Add a to-do item"},
	{Name: "done", Description: "Mark to-do item as done"},
	{Name: "lock", Description: "Lock the discussion"},
	{Name: "unlock", Description: "Unlock the discussion"},
	{Name: "close", Description: "Close"},
	{Name: "reopen", Description: "Reopen"},
}

// QuickActions returns the built-in slash commands as resource entries.
func QuickActions() []resource.Entry {
	entries := make([]resource.Entry, len(quickActions))
	for i, qa := range quickActions {
		entries[i] = qa
	}
	return entries
}
