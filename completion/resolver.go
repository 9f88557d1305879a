// Package completion ranks resource entries against a trigger context and
// shapes them into editor completion candidates.
package completion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/resource"
	"github.com/teranos/gitlab-ls/trigger"
)

// DefaultMaxCandidates bounds the size of a completion response.
const DefaultMaxCandidates = 50

// Match tiers; lower sorts first.
const (
	TierPrefix = 0
	TierWord   = 1
)

// cancellation is checked once per this many entries
const checkEvery = 64

// Candidate is one suggestion. Start and End are byte offsets of the text
// the candidate replaces.
type Candidate struct {
	Label         string
	InsertText    string
	Snippet       bool
	FilterText    string
	Detail        string
	Documentation string
	SortText      string
	Kind          resource.Kind
	Tier          int
	Start, End    int
}

// Result is a ranked candidate list. Truncated means more entries matched
// than were returned.
type Result struct {
	Candidates []Candidate
	Truncated  bool
}

// Resolver turns entries into ranked candidates. It is safe for concurrent use.
type Resolver struct {
	maxCandidates atomic.Int64
	snippets      atomic.Bool
}

// NewResolver returns a resolver capped at maxCandidates (<= 0 uses the
// default). snippets enables placeholder insert text for quick actions.
func NewResolver(maxCandidates int, snippets bool) *Resolver {
	r := &Resolver{}
	r.SetMaxCandidates(maxCandidates)
	r.snippets.Store(snippets)
	return r
}

// SetMaxCandidates changes the response cap.
func (r *Resolver) SetMaxCandidates(n int) {
	if n <= 0 {
		n = DefaultMaxCandidates
	}
	r.maxCandidates.Store(int64(n))
}

// MaxCandidates returns the response cap.
func (r *Resolver) MaxCandidates() int {
	return int(r.maxCandidates.Load())
}

type scored struct {
	entry resource.Entry
	tier  int
	label string
}

// Resolve filters entries of trig's kind by its prefix and ranks them:
// prefix matches first, then matches at a word boundary, alphabetical
// within each tier. Anything else is dropped.
func (r *Resolver) Resolve(ctx context.Context, trig trigger.Context, entries []resource.Entry) (Result, error) {
	filter := strings.ToLower(trig.Filter())

	var matched []scored
	for i, entry := range entries {
		if i%checkEvery == 0 {
			if err := cancelled(ctx); err != nil {
				return Result{}, err
			}
		}
		if entry.Kind() != trig.Kind {
			continue
		}
		tier, ok := matchTier(entry, filter)
		if !ok {
			continue
		}
		matched = append(matched, scored{entry: entry, tier: tier, label: entry.Matchable()})
	}

	if err := cancelled(ctx); err != nil {
		return Result{}, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		la, lb := strings.ToLower(a.label), strings.ToLower(b.label)
		if la != lb {
			return la < lb
		}
		return a.label < b.label
	})

	res := Result{}
	limit := r.MaxCandidates()
	if len(matched) > limit {
		matched = matched[:limit]
		res.Truncated = true
	}

	snippets := r.snippets.Load()
	res.Candidates = make([]Candidate, 0, len(matched))
	for rank, m := range matched {
		c := r.candidate(trig, m.entry, snippets)
		c.Tier = m.tier
		c.SortText = fmt.Sprintf("%d%05d", m.tier, rank)
		res.Candidates = append(res.Candidates, c)
	}
	return res, nil
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrRequestCancelled, err.Error())
	}
	return nil
}

// matchTier expects filter already lower-cased.
func matchTier(entry resource.Entry, filter string) (int, bool) {
	if filter == "" {
		return TierPrefix, true
	}
	name := strings.ToLower(entry.Matchable())
	if strings.HasPrefix(name, filter) {
		return TierPrefix, true
	}
	if wordPrefix(name, filter) || wordPrefix(strings.ToLower(entry.Secondary()), filter) {
		return TierWord, true
	}
	return 0, false
}

// wordPrefix reports whether filter is a prefix of any word in s. Words
// start at the beginning of s or after a character that is neither a
// letter nor a digit, so "al" matches "release-alpha" but not "balance".
func wordPrefix(s, filter string) bool {
	if s == "" {
		return false
	}
	prevWord := false
	for i, r := range s {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		if word && !prevWord && strings.HasPrefix(s[i:], filter) {
			return true
		}
		prevWord = word
	}
	return false
}

func (r *Resolver) candidate(trig trigger.Context, entry resource.Entry, snippets bool) Candidate {
	c := Candidate{
		Label: entry.Matchable(),
		Kind:  entry.Kind(),
		Start: trig.ReplaceStart(),
		End:   trig.Cursor,
	}

	switch e := entry.(type) {
	case resource.Member:
		c.InsertText = e.Username
		c.Detail = e.Name
	case resource.Milestone:
		c.InsertText = quoteIfNeeded(e.Title, trig.Quoted)
		c.Detail = dueDetail(e)
		c.Documentation = e.Description
	case resource.Label:
		c.InsertText = quoteIfNeeded(e.Name, trig.Quoted)
		c.Detail = labelDetail(e)
		c.Documentation = e.Color
	case resource.QuickAction:
		c.Detail = e.Description
		c.InsertText, c.Snippet = quickActionInsert(e, snippets)
		c.FilterText = e.Name
		c.Documentation = "/" + e.Name
		if e.ArgHint != "" {
			c.Documentation += " " + e.ArgHint
		}
	default:
		c.InsertText = entry.Matchable()
	}

	if c.FilterText == "" {
		c.FilterText = c.InsertText
	}
	return c
}

// quoteIfNeeded wraps names containing whitespace in double quotes, the form
// GitLab accepts for multi-word labels and milestones. A name is also quoted
// when the user already opened a quote.
func quoteIfNeeded(name string, opened bool) string {
	if opened || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return `"` + name + `"`
	}
	return name
}

// labelDetail is the colour followed by the description, either may be empty.
func labelDetail(l resource.Label) string {
	return strings.TrimSpace(l.Color + " " + l.Description)
}

func dueDetail(m resource.Milestone) string {
	switch m.State {
	case resource.DueExpired:
		return "expired"
	case resource.DueUpcoming:
		return "due " + m.DueDate
	default:
		return "no due date"
	}
}

// quickActionInsert returns the insert text for a quick action, with a
// ${1:hint} placeholder when snippets are enabled.
func quickActionInsert(qa resource.QuickAction, snippets bool) (string, bool) {
	if qa.ArgHint == "" {
		return qa.Name, false
	}
	if !snippets {
		return qa.Name + " ", false
	}
	return qa.Name + " ${1:" + escapeSnippet(qa.ArgHint) + "}", true
}

var snippetEscaper = strings.NewReplacer(`\`, `\\`, `$`, `\$`, `}`, `\}`)

func escapeSnippet(s string) string {
	return snippetEscaper.Replace(s)
}
