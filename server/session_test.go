package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/gitlab-ls/config"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/resource"
)

type fakeFetcher struct {
	mu         sync.Mutex
	members    []resource.Member
	milestones []resource.Milestone
	labels     []resource.Label
	err        error
	calls      map[resource.Kind]int
	gate       chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		members: []resource.Member{
			{ID: 1, Username: "alice", Name: "Alice Liddell"},
			{ID: 2, Username: "albert", Name: "Albert Camus"},
			{ID: 3, Username: "balance", Name: "Bal Ance"},
		},
		milestones: []resource.Milestone{
			{ID: 10, Title: "Release 1.0", DueDate: "2099-01-01", State: resource.DueUpcoming},
		},
		labels: []resource.Label{
			{ID: 20, Name: "bug", Color: "#ff0000"},
			{ID: 21, Name: "needs review", Color: "#00ff00"},
		},
		calls: make(map[resource.Kind]int),
	}
}

func (f *fakeFetcher) record(ctx context.Context, kind resource.Kind) error {
	f.mu.Lock()
	f.calls[kind]++
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeFetcher) FetchMembers(ctx context.Context, _ string) ([]resource.Member, error) {
	if err := f.record(ctx, resource.KindMember); err != nil {
		return nil, err
	}
	return f.members, nil
}

func (f *fakeFetcher) FetchMilestones(ctx context.Context, _ string) ([]resource.Milestone, error) {
	if err := f.record(ctx, resource.KindMilestone); err != nil {
		return nil, err
	}
	return f.milestones, nil
}

func (f *fakeFetcher) FetchLabels(ctx context.Context, _ string) ([]resource.Label, error) {
	if err := f.record(ctx, resource.KindLabel); err != nil {
		return nil, err
	}
	return f.labels, nil
}

func (f *fakeFetcher) callCount(kind resource.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

type notification struct {
	method string
	params any
}

type recorder struct {
	mu    sync.Mutex
	notes []notification
}

func (r *recorder) notify(method string, params any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notification{method: method, params: params})
}

func (r *recorder) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var methods []string
	for _, n := range r.notes {
		methods = append(methods, n.method)
	}
	return methods
}

func testConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			TTLSeconds:          60,
			FetchTimeoutSeconds: 5,
		},
		Completion: config.CompletionConfig{
			MaxCandidates:       50,
			QuickActionSnippets: true,
		},
		Documents: config.DocumentsConfig{MaxOpen: 10},
	}
}

type harness struct {
	t       *testing.T
	session *Session
	fetcher *fakeFetcher
	rec     *recorder
}

func setupSession(t *testing.T) *harness {
	t.Helper()
	f := newFakeFetcher()
	s := NewSession(Options{Config: testConfig(), Fetcher: f})
	t.Cleanup(s.Stop)
	return &harness{t: t, session: s, fetcher: f, rec: &recorder{}}
}

// call dispatches method and runs any deferred work to completion.
func (h *harness) call(method string, params any) (any, error) {
	h.t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(h.t, err)
		raw = data
	}
	c := &glsp.Context{Method: method, Params: raw, Notify: h.rec.notify}
	result, err := h.session.Dispatch(context.Background(), c)
	if d, ok := result.(Deferred); ok && err == nil {
		return d(context.Background())
	}
	return result, err
}

func (h *harness) initialize(project string) {
	h.t.Helper()
	_, err := h.call(protocol.MethodInitialize, map[string]any{
		"capabilities":          map[string]any{},
		"initializationOptions": map[string]any{"project": project},
	})
	require.NoError(h.t, err)
}

func (h *harness) open(uri, languageID, text string, version int) {
	h.t.Helper()
	_, err := h.call(protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    protocol.Integer(version),
			Text:       text,
		},
	})
	require.NoError(h.t, err)
}

func (h *harness) change(uri string, version int, changes ...any) error {
	h.t.Helper()
	_, err := h.call(protocol.MethodTextDocumentDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                protocol.Integer(version),
		},
		ContentChanges: changes,
	})
	return err
}

func (h *harness) complete(uri string, line, character int) (*protocol.CompletionList, error) {
	h.t.Helper()
	result, err := h.call(protocol.MethodTextDocumentCompletion, protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(character)},
		},
	})
	if err != nil {
		return nil, err
	}
	list, ok := result.(*protocol.CompletionList)
	require.True(h.t, ok, "unexpected result %T", result)
	return list, nil
}

func labels(list *protocol.CompletionList) []string {
	var out []string
	for _, item := range list.Items {
		out = append(out, item.Label)
	}
	return out
}

func textEdit(t *testing.T, item protocol.CompletionItem) protocol.TextEdit {
	t.Helper()
	edit, ok := item.TextEdit.(protocol.TextEdit)
	require.True(t, ok)
	return edit
}

func TestNotReadyBeforeInitialize(t *testing.T) {
	h := setupSession(t)

	tests := []struct {
		method string
		params any
	}{
		{method: protocol.MethodTextDocumentDidOpen, params: protocol.DidOpenTextDocumentParams{}},
		{method: protocol.MethodTextDocumentDidChange, params: protocol.DidChangeTextDocumentParams{}},
		{method: protocol.MethodTextDocumentDidClose, params: protocol.DidCloseTextDocumentParams{}},
		{method: protocol.MethodTextDocumentCompletion, params: protocol.CompletionParams{}},
		{method: protocol.MethodShutdown},
		{method: "textDocument/hover", params: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, err := h.call(tt.method, tt.params)
			require.Error(t, err)
			assert.True(t, errors.IsNotReadyError(err))
			assert.Equal(t, CodeServerNotInitialized, ErrorCode(err))
		})
	}
	assert.Equal(t, StateUninitialized, h.session.State())
}

func TestInitialize(t *testing.T) {
	h := setupSession(t)

	result, err := h.call(protocol.MethodInitialize, map[string]any{
		"capabilities":          map[string]any{},
		"clientInfo":            map[string]any{"name": "test-editor"},
		"initializationOptions": map[string]any{"project": "group/sub/project", "cacheTtlSeconds": 30},
	})
	require.NoError(t, err)

	res, ok := result.(protocol.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, ServerName, res.ServerInfo.Name)
	require.NotNil(t, res.Capabilities.CompletionProvider)
	assert.Equal(t, []string{"@", "%", "~", "/"}, res.Capabilities.CompletionProvider.TriggerCharacters)

	syncOpts, ok := res.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, *syncOpts.Change)
	assert.True(t, *syncOpts.OpenClose)

	assert.Equal(t, StateReady, h.session.State())
	assert.Equal(t, "group/sub/project", h.session.Project())

	_, err = h.call(protocol.MethodInitialize, map[string]any{
		"initializationOptions": map[string]any{"project": "group/project"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestInitializeConfigError(t *testing.T) {
	tests := []struct {
		name    string
		options any
	}{
		{name: "missing options", options: nil},
		{name: "missing project", options: map[string]any{}},
		{name: "no namespace", options: map[string]any{"project": "project"}},
		{name: "spaces", options: map[string]any{"project": "my group/project"}},
		{name: "ttl zero", options: map[string]any{"project": "a/b", "cacheTtlSeconds": 0}},
		{name: "ttl wrong type", options: map[string]any{"project": "a/b", "cacheTtlSeconds": "60"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupSession(t)
			params := map[string]any{"capabilities": map[string]any{}}
			if tt.options != nil {
				params["initializationOptions"] = tt.options
			}

			_, err := h.call(protocol.MethodInitialize, params)
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))
			assert.Equal(t, StateStopped, h.session.State())
			assert.Equal(t, 1, h.session.ExitCode())
		})
	}
}

func TestMemberCompletion(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "Hello @al", 1)

	list, err := h.complete("file:///notes.md", 0, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"albert", "alice"}, labels(list))
	assert.False(t, list.IsIncomplete)

	edit := textEdit(t, list.Items[0])
	assert.Equal(t, "albert", edit.NewText)
	assert.Equal(t, protocol.Position{Line: 0, Character: 7}, edit.Range.Start)
	assert.Equal(t, protocol.Position{Line: 0, Character: 9}, edit.Range.End)
	assert.Equal(t, "Albert Camus", *list.Items[0].Detail)
	assert.Equal(t, protocol.CompletionItemKindReference, *list.Items[0].Kind)
	assert.Equal(t, 1, h.fetcher.callCount(resource.KindMember))
}

func TestQuickActionCompletion(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "Some text\n/clo", 1)

	list, err := h.complete("file:///notes.md", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"close"}, labels(list))
	assert.Equal(t, protocol.InsertTextFormatPlainText, *list.Items[0].InsertTextFormat)

	edit := textEdit(t, list.Items[0])
	assert.Equal(t, protocol.Position{Line: 1, Character: 1}, edit.Range.Start)

	list, err = h.complete("file:///notes.md", 1, 1)
	require.NoError(t, err)
	assert.Contains(t, labels(list), "assign")
}

func TestQuotedLabelCompletion(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "~nee", 1)

	list, err := h.complete("file:///notes.md", 0, 4)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, `"needs review"`, textEdit(t, list.Items[0]).NewText)
	assert.Equal(t, "#00ff00", list.Items[0].Documentation)
	require.NotNil(t, list.Items[0].Detail)
	assert.Equal(t, "#00ff00", *list.Items[0].Detail)
}

func TestNoCompletion(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "email a@b and foo /bar", 1)
	h.open("file:///main.go", "go", "// @al", 1)

	tests := []struct {
		name      string
		uri       string
		character int
	}{
		{name: "mid word", uri: "file:///notes.md", character: 9},
		{name: "slash not at line start", uri: "file:///notes.md", character: 22},
		{name: "cursor at start", uri: "file:///notes.md", character: 0},
		{name: "not markdown", uri: "file:///main.go", character: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := h.complete(tt.uri, 0, tt.character)
			require.NoError(t, err)
			assert.Empty(t, list.Items)
		})
	}
	assert.Equal(t, 0, h.fetcher.callCount(resource.KindMember))
}

func TestCompletionUnknownDocument(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")

	_, err := h.complete("file:///missing.md", 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownDocument))
}

func TestIncrementalChanges(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "Hello world", 1)

	err := h.change("file:///notes.md", 2,
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 6},
				End:   protocol.Position{Line: 0, Character: 11},
			},
			Text: "@",
		},
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 7},
				End:   protocol.Position{Line: 0, Character: 7},
			},
			Text: "ali",
		},
	)
	require.NoError(t, err)

	list, err := h.complete("file:///notes.md", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, labels(list))
}

func TestStaleChangeDesyncs(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "Hello @al", 5)

	err := h.change("file:///notes.md", 5, protocol.TextDocumentContentChangeEventWhole{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStaleVersion))
	assert.Equal(t, []string{protocol.ServerWindowLogMessage, protocol.ServerWindowShowMessage}, h.rec.methods())

	_, err = h.complete("file:///notes.md", 0, 9)
	require.Error(t, err)
	assert.True(t, errors.IsDocumentError(err))

	// a full resend repairs the document
	require.NoError(t, h.change("file:///notes.md", 6, protocol.TextDocumentContentChangeEventWhole{Text: "@al"}))
	list, err := h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
}

func TestReopenIsIdempotent(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "@al", 1)

	before, err := h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)
	h.open("file:///notes.md", "markdown", "@al", 1)
	after, err := h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestCloseDocument(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "@al", 1)

	closeParams := protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///notes.md"},
	}
	_, err := h.call(protocol.MethodTextDocumentDidClose, closeParams)
	require.NoError(t, err)

	_, err = h.call(protocol.MethodTextDocumentDidClose, closeParams)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownDocument))
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), ErrorCode(err))
}

func TestFetchErrorYieldsEmptyList(t *testing.T) {
	h := setupSession(t)
	h.fetcher.err = errors.New("connection refused")
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "@al", 1)

	list, err := h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Equal(t, []string{protocol.ServerWindowLogMessage}, h.rec.methods())
}

func TestCancelledCompletion(t *testing.T) {
	h := setupSession(t)
	h.fetcher.gate = make(chan struct{})
	defer close(h.fetcher.gate)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "@al", 1)

	raw, err := json.Marshal(protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///notes.md"},
			Position:     protocol.Position{Line: 0, Character: 3},
		},
	})
	require.NoError(t, err)
	result, err := h.session.Dispatch(context.Background(), &glsp.Context{
		Method: protocol.MethodTextDocumentCompletion,
		Params: raw,
	})
	require.NoError(t, err)
	d, ok := result.(Deferred)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCancelledError(err))
	assert.Equal(t, CodeRequestCancelled, ErrorCode(err))
}

func TestShutdownDrainsCompletions(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "@al", 1)

	_, err := h.call(protocol.MethodShutdown, nil)
	require.NoError(t, err)
	assert.Equal(t, StateShuttingDown, h.session.State())

	list, err := h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)

	err = h.change("file:///notes.md", 2, protocol.TextDocumentContentChangeEventWhole{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsNotReadyError(err))

	// repeated shutdown is harmless
	_, err = h.call(protocol.MethodShutdown, nil)
	require.NoError(t, err)

	_, err = h.call(protocol.MethodExit, nil)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, h.session.State())
	assert.Equal(t, 0, h.session.ExitCode())
}

func TestStoppedIsTerminal(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "@al", 1)

	_, err := h.call(protocol.MethodExit, nil)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, h.session.State())
	assert.Equal(t, 1, h.session.ExitCode())

	for _, method := range []string{
		protocol.MethodTextDocumentCompletion,
		protocol.MethodTextDocumentDidOpen,
		protocol.MethodShutdown,
		protocol.MethodInitialize,
	} {
		_, err := h.call(method, map[string]any{})
		require.Error(t, err, method)
		assert.True(t, errors.IsNotReadyError(err), method)
	}

	_, err = h.call(protocol.MethodExit, nil)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, h.session.State())
}

func TestInitializedPrefetches(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")

	_, err := h.call(protocol.MethodInitialized, map[string]any{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return h.fetcher.callCount(resource.KindMember) == 1 &&
			h.fetcher.callCount(resource.KindMilestone) == 1 &&
			h.fetcher.callCount(resource.KindLabel) == 1
	}, time.Second, 5*time.Millisecond)

	// served from the prefetched cache
	h.open("file:///notes.md", "markdown", "%Rel", 1)
	list, err := h.complete("file:///notes.md", 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"Release 1.0"}, labels(list))
	assert.Equal(t, 1, h.fetcher.callCount(resource.KindMilestone))
}

func TestSetCacheTTL(t *testing.T) {
	t.Run("applies without override", func(t *testing.T) {
		h := setupSession(t)
		h.initialize("group/project")
		h.session.SetCacheTTL(5 * time.Minute)
		assert.Equal(t, 5*time.Minute, h.session.cache.TTL())
	})

	t.Run("editor override wins", func(t *testing.T) {
		h := setupSession(t)
		_, err := h.call(protocol.MethodInitialize, map[string]any{
			"initializationOptions": map[string]any{"project": "a/b", "cacheTtlSeconds": 10},
		})
		require.NoError(t, err)
		h.session.SetCacheTTL(5 * time.Minute)
		assert.Equal(t, 10*time.Second, h.session.cache.TTL())
	})
}

func TestConfigurationChangeDropsCache(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "~bu", 1)

	_, err := h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)
	_, err = h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, h.fetcher.callCount(resource.KindLabel))

	_, err = h.call(protocol.MethodWorkspaceDidChangeConfiguration, map[string]any{"settings": map[string]any{}})
	require.NoError(t, err)

	list, err := h.complete("file:///notes.md", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, h.fetcher.callCount(resource.KindLabel))
	assert.NotEmpty(t, list.Items)
}

func TestConfigurationChangeBeforeInitialize(t *testing.T) {
	h := setupSession(t)
	_, err := h.call(protocol.MethodWorkspaceDidChangeConfiguration, map[string]any{"settings": map[string]any{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotReady))
}

func TestUnknownMethod(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")

	_, err := h.call("textDocument/hover", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMethodNotFound))

	_, validMethod, _, err := h.session.Handle(&glsp.Context{Method: "textDocument/hover"})
	assert.False(t, validMethod)
	assert.NoError(t, err)
}

func TestHandleRunsDeferred(t *testing.T) {
	h := setupSession(t)
	h.initialize("group/project")
	h.open("file:///notes.md", "markdown", "@al", 1)

	raw, err := json.Marshal(protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///notes.md"},
			Position:     protocol.Position{Line: 0, Character: 3},
		},
	})
	require.NoError(t, err)

	result, validMethod, validParams, err := h.session.Handle(&glsp.Context{
		Method: protocol.MethodTextDocumentCompletion,
		Params: raw,
	})
	require.NoError(t, err)
	assert.True(t, validMethod)
	assert.True(t, validParams)
	list, ok := result.(*protocol.CompletionList)
	require.True(t, ok)
	assert.Len(t, list.Items, 2)
}

func TestParseInitializationOptions(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    InitializationOptions
		wantErr bool
	}{
		{name: "nil", raw: nil, wantErr: true},
		{name: "project", raw: map[string]any{"project": "gitlab-org/gitlab"}, want: InitializationOptions{Project: "gitlab-org/gitlab"}},
		{name: "nested group", raw: map[string]any{"project": "a/b.c/d_e-f"}, want: InitializationOptions{Project: "a/b.c/d_e-f"}},
		{name: "trailing slash", raw: map[string]any{"project": "a/b/"}, wantErr: true},
		{name: "negative ttl", raw: map[string]any{"project": "a/b", "cacheTtlSeconds": -1}, wantErr: true},
		{name: "not an object", raw: "a/b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInitializationOptions(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "shutting_down", StateShuttingDown.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
