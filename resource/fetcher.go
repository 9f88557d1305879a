package resource

import "context"

// Fetcher retrieves resources for a project, e.g. from the GitLab API.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	FetchMembers(ctx context.Context, project string) ([]Member, error)
	FetchMilestones(ctx context.Context, project string) ([]Milestone, error)
	FetchLabels(ctx context.Context, project string) ([]Label, error)
}

// FetchKind dispatches to the Fetcher method for kind and widens the result to []Entry.
func FetchKind(ctx context.Context, f Fetcher, project string, kind Kind) ([]Entry, error) {
	switch kind {
	case KindMember:
		members, err := f.FetchMembers(ctx, project)
		return toEntries(members), err
	case KindMilestone:
		milestones, err := f.FetchMilestones(ctx, project)
		return toEntries(milestones), err
	case KindLabel:
		labels, err := f.FetchLabels(ctx, project)
		return toEntries(labels), err
	default:
		return nil, errUnfetchable(kind)
	}
}

func toEntries[E Entry](items []E) []Entry {
	entries := make([]Entry, len(items))
	for i, item := range items {
		entries[i] = item
	}
	return entries
}
