// Package resource models GitLab entities offered as completions and caches
// them per project with stale-while-revalidate semantics.
package resource

import (
	"strings"

	"github.com/teranos/gitlab-ls/errors"
)

// Kind is the type of reference a trigger character introduces.
type Kind int

const (
	KindNone Kind = iota
	KindMember
	KindMilestone
	KindLabel
	KindQuickAction
)

// FetchedKinds are the kinds backed by the GitLab API.
var FetchedKinds = []Kind{KindMember, KindMilestone, KindLabel}

func (k Kind) String() string {
	switch k {
	case KindMember:
		return "member"
	case KindMilestone:
		return "milestone"
	case KindLabel:
		return "label"
	case KindQuickAction:
		return "quick_action"
	default:
		return "none"
	}
}

// Trigger returns the character that introduces k in Markdown.
func (k Kind) Trigger() byte {
	switch k {
	case KindMember:
		return '@'
	case KindMilestone:
		return '%'
	case KindLabel:
		return '~'
	case KindQuickAction:
		return '/'
	default:
		return 0
	}
}

// KindForTrigger maps a trigger character to its kind.
func KindForTrigger(c byte) (Kind, bool) {
	switch c {
	case '@':
		return KindMember, true
	case '%':
		return KindMilestone, true
	case '~':
		return KindLabel, true
	case '/':
		return KindQuickAction, true
	default:
		return KindNone, false
	}
}

// ParseKind accepts singular or plural names, e.g. "labels".
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "member":
		return KindMember, nil
	case "milestone":
		return KindMilestone, nil
	case "label":
		return KindLabel, nil
	case "quick_action", "quick-action", "quickaction":
		return KindQuickAction, nil
	}
	return KindNone, errors.Wrapf(errors.ErrInvalidRequest, "unknown resource kind %q", s)
}
