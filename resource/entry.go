package resource

import (
	"strconv"
	"time"
)

// Entry is one completable GitLab entity.
type Entry interface {
	Kind() Kind
	// Key identifies the entry within its kind.
	Key() string
	// Matchable is the text the user types after the trigger character.
	Matchable() string
	// Secondary is extra text that may match at word boundaries, e.g. a display name.
	Secondary() string
}

// Member is a project member, including inherited ones.
type Member struct {
	ID       int64
	Username string
	Name     string
}

func (m Member) Kind() Kind { return KindMember }
func (m Member) Key() string { return strconv.FormatInt(m.ID, 10) }
func (m Member) Matchable() string { return m.Username }
func (m Member) Secondary() string { return m.Name }

// DueState summarises a milestone's due date relative to now.
type DueState int

const (
	DueNone DueState = iota
	DueUpcoming
	DueExpired
)

// Milestone is an active project or group milestone.
type Milestone struct {
	ID          int64
	Title       string
	Description string
	DueDate     string // YYYY-MM-DD, empty when unset
	State       DueState
}

func (m Milestone) Kind() Kind { return KindMilestone }
func (m Milestone) Key() string { return strconv.FormatInt(m.ID, 10) }
func (m Milestone) Matchable() string { return m.Title }
func (m Milestone) Secondary() string { return "" }

// DueStateFor derives a milestone's state from its due date and GitLab's expired flag.
func DueStateFor(dueDate string, expired bool, now time.Time) DueState {
	if expired {
		return DueExpired
	}
	if dueDate == "" {
		return DueNone
	}
	due, err := time.Parse(time.DateOnly, dueDate)
	if err != nil {
		return DueNone
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if due.Before(today) {
		return DueExpired
	}
	return DueUpcoming
}

// Label is a project label, including ones inherited from groups.
type Label struct {
	ID          int64
	Name        string
	Color       string
	Description string
}

func (l Label) Kind() Kind { return KindLabel }
func (l Label) Key() string { return l.Name }
func (l Label) Matchable() string { return l.Name }
func (l Label) Secondary() string { return "" }

// QuickAction is a slash command. ArgHint is empty for commands without arguments.
type QuickAction struct {
	Name        string
	Description string
	ArgHint     string
}

func (q QuickAction) Kind() Kind { return KindQuickAction }
func (q QuickAction) Key() string { return q.Name }
func (q QuickAction) Matchable() string { return q.Name }
func (q QuickAction) Secondary() string { return "" }
