package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForTrigger(t *testing.T) {
	for _, kind := range []Kind{KindMember, KindMilestone, KindLabel, KindQuickAction} {
		got, ok := KindForTrigger(kind.Trigger())
		require.True(t, ok, kind.String())
		assert.Equal(t, kind, got)
	}
	_, ok := KindForTrigger('#')
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "members", want: KindMember},
		{in: "Milestone", want: KindMilestone},
		{in: " labels ", want: KindLabel},
		{in: "quick-actions", want: KindQuickAction},
		{in: "issues", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDueStateFor(t *testing.T) {
	now := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		due     string
		expired bool
		want    DueState
	}{
		{"no due date", "", false, DueNone},
		{"future", "2024-06-01", false, DueUpcoming},
		{"today is still upcoming", "2024-05-01", false, DueUpcoming},
		{"past", "2024-04-30", false, DueExpired},
		{"flagged expired", "2030-01-01", true, DueExpired},
		{"unparseable", "soon", false, DueNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DueStateFor(tt.due, tt.expired, now))
		})
	}
}

func TestEntryIdentity(t *testing.T) {
	var entries = []Entry{
		Member{ID: 7, Username: "alice", Name: "Alice"},
		Milestone{ID: 8, Title: "v1"},
		Label{ID: 9, Name: "bug"},
		QuickAction{Name: "assign"},
	}
	assert.Equal(t, []string{"7", "8", "bug", "assign"}, []string{
		entries[0].Key(), entries[1].Key(), entries[2].Key(), entries[3].Key(),
	})
	assert.Equal(t, "Alice", entries[0].Secondary())
}
