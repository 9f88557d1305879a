// Package server runs the language server session: it enforces the
// initialize/shutdown/exit lifecycle, keeps open documents in sync and
// answers completion requests.
package server

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/gitlab-ls/completion"
	"github.com/teranos/gitlab-ls/config"
	"github.com/teranos/gitlab-ls/document"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/logger"
	"github.com/teranos/gitlab-ls/metrics"
	"github.com/teranos/gitlab-ls/resource"
	"github.com/teranos/gitlab-ls/trigger"
	"github.com/teranos/gitlab-ls/version"
)

// ServerName is reported in the initialize result.
const ServerName = "gitlab-ls"

// TriggerCharacters are advertised to the editor as completion triggers.
var TriggerCharacters = []string{"@", "%", "~", "/"}

var projectPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+(/[A-Za-z0-9_.-]+)+$`)

// State is a session lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Deferred is returned by Dispatch for requests whose remaining work may
// block on the network. The caller runs it off the read loop with a context
// that is cancelled when the editor cancels the request.
type Deferred func(ctx context.Context) (any, error)

// InitializationOptions are read from initialize's initializationOptions.
type InitializationOptions struct {
	Project         string `json:"project"`
	CacheTTLSeconds *int   `json:"cacheTtlSeconds,omitempty"`
}

// Options configures a Session.
type Options struct {
	Config  *config.Config
	Fetcher resource.Fetcher
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Session is one editor connection. It owns the document store and the
// resource cache for the connection's lifetime; both are torn down when the
// session stops.
type Session struct {
	id       string
	cfg      *config.Config
	fetcher  resource.Fetcher
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	docs     *document.Store
	resolver *completion.Resolver

	mu          sync.Mutex
	state       State
	shutdown    bool
	configErr   bool
	project     string
	cache       *resource.Cache
	ttl         time.Duration
	ttlOverride bool
	prefetch    context.CancelFunc
}

var _ glsp.Handler = (*Session)(nil)

// NewSession creates a session in the Uninitialized state.
func NewSession(opts Options) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	id := uuid.NewString()

	return &Session{
		id:       id,
		cfg:      cfg,
		fetcher:  opts.Fetcher,
		logger:   log.With(logger.FieldSession, id),
		metrics:  opts.Metrics,
		docs:     document.NewStore(cfg.Documents.MaxOpen),
		resolver: completion.NewResolver(cfg.Completion.MaxCandidates, cfg.Completion.QuickActionSnippets),
		ttl:      cfg.Cache.TTL(),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Project returns the project configured at initialize, or "".
func (s *Session) Project() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// ExitCode is the process exit status once the session has stopped: 0 when
// shutdown preceded exit, 1 otherwise or after a configuration error.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown && !s.configErr {
		return 0
	}
	return 1
}

// SetCacheTTL applies a reloaded cache.ttl_seconds. An override sent by the
// editor at initialize wins.
func (s *Session) SetCacheTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttlOverride {
		return
	}
	s.ttl = ttl
	if s.cache != nil {
		s.cache.SetTTL(ttl)
	}
}

// SetMaxCandidates applies a reloaded completion.max_candidates.
func (s *Session) SetMaxCandidates(n int) {
	s.resolver.SetMaxCandidates(n)
}

// Stop tears the session down without a shutdown handshake, e.g. when the
// connection drops.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		s.logger.Infow("Session stopped without exit", logger.FieldState, s.state.String())
		s.teardownLocked()
	}
}

// Handle implements glsp.Handler so a session can be driven by glsp's own
// server instead of Conn. Deferred work runs synchronously, so completion
// requests are not served concurrently with later messages.
func (s *Session) Handle(c *glsp.Context) (r any, validMethod bool, validParams bool, err error) {
	r, err = s.Dispatch(context.Background(), c)
	if d, ok := r.(Deferred); ok && err == nil {
		r, err = d(context.Background())
	}
	switch {
	case errors.Is(err, ErrMethodNotFound):
		return nil, false, false, nil
	case errors.Is(err, ErrInvalidParams):
		return nil, true, false, err
	}
	return r, true, true, err
}

// Dispatch routes one message after checking it is allowed in the current
// state. Messages must be dispatched in arrival order; a Deferred result may
// then run concurrently with later messages.
func (s *Session) Dispatch(ctx context.Context, c *glsp.Context) (any, error) {
	log := logger.FromContext(ctx, s.logger)
	log.Debugw("Dispatch", logger.FieldMethod, c.Method)

	switch c.Method {
	case protocol.MethodInitialize:
		return s.initialize(ctx, c)
	case protocol.MethodInitialized:
		return nil, s.initialized(ctx, c)
	case protocol.MethodShutdown:
		return nil, s.shutdownRequest(ctx)
	case protocol.MethodExit:
		s.exit(ctx)
		return nil, nil
	case protocol.MethodTextDocumentDidOpen:
		return nil, s.didOpen(ctx, c)
	case protocol.MethodTextDocumentDidChange:
		return nil, s.didChange(ctx, c)
	case protocol.MethodTextDocumentDidClose:
		return nil, s.didClose(ctx, c)
	case protocol.MethodTextDocumentCompletion:
		return s.completion(ctx, c)
	case protocol.MethodWorkspaceDidChangeConfiguration:
		return nil, s.configurationChanged(ctx, c)
	case protocol.MethodTextDocumentDidSave, protocol.MethodSetTrace:
		if err := s.require(c.Method, StateReady, StateShuttingDown); err != nil {
			return nil, err
		}
		log.Debugw("Ignoring notification", logger.FieldMethod, c.Method)
		return nil, nil
	default:
		if err := s.require(c.Method, StateReady, StateShuttingDown); err != nil {
			return nil, err
		}
		return nil, errors.Wrapf(ErrMethodNotFound, "%s", c.Method)
	}
}

// require fails with ErrNotReady unless the session is in one of allowed.
func (s *Session) require(method string, allowed ...State) error {
	state := s.State()
	for _, a := range allowed {
		if state == a {
			return nil
		}
	}
	return errors.Wrapf(errors.ErrNotReady, "%s not allowed while %s", method, state)
}

func decodeParams(c *glsp.Context, v any) error {
	if len(c.Params) == 0 {
		return errors.Wrapf(ErrInvalidParams, "%s: missing params", c.Method)
	}
	if err := json.Unmarshal(c.Params, v); err != nil {
		return errors.Mark(errors.Wrapf(err, "%s: decode params", c.Method), ErrInvalidParams)
	}
	return nil
}

func (s *Session) initialize(ctx context.Context, c *glsp.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUninitialized:
	case StateStopped:
		return nil, errors.Wrap(errors.ErrNotReady, "initialize after exit")
	default:
		return nil, errors.Wrap(errors.ErrInvalidRequest, "initialize received twice")
	}

	var params protocol.InitializeParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	opts, err := ParseInitializationOptions(params.InitializationOptions)
	if err != nil {
		s.configErr = true
		s.teardownLocked()
		s.logger.Errorw("Initialize rejected", logger.FieldError, err)
		return nil, err
	}

	if opts.CacheTTLSeconds != nil {
		s.ttl = time.Duration(*opts.CacheTTLSeconds) * time.Second
		s.ttlOverride = true
	}
	s.project = opts.Project
	s.cache = resource.NewCache(s.fetcher, resource.Options{
		TTL:             s.ttl,
		FetchTimeout:    s.cfg.Cache.FetchTimeout(),
		FailureCooldown: s.cfg.Cache.FailureCooldown(),
		Logger:          s.logger.Named("cache"),
		Metrics:         s.metrics,
	})
	s.state = StateReady

	client := ""
	if params.ClientInfo != nil {
		client = params.ClientInfo.Name
	}
	logger.FromContext(ctx, s.logger).Infow("Session initialized",
		logger.FieldProject, s.project,
		"client", client,
		"cache_ttl", s.ttl.String())

	syncKind := protocol.TextDocumentSyncKindIncremental
	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptr(true),
				Change:    &syncKind,
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: TriggerCharacters,
			},
		},
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    ServerName,
			Version: ptr(version.Get().Short()),
		},
	}, nil
}

// ParseInitializationOptions validates the editor-supplied options. The
// project is required and must look like namespace/project.
func ParseInitializationOptions(raw any) (InitializationOptions, error) {
	var opts InitializationOptions
	if raw == nil {
		return opts, errors.WithHint(
			errors.NewConfigError("initializationOptions.project is required"),
			`set initializationOptions to {"project": "namespace/project"}`)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return opts, errors.Mark(errors.Wrap(err, "initializationOptions"), errors.ErrConfig)
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return opts, errors.Mark(errors.Wrap(err, "initializationOptions"), errors.ErrConfig)
	}
	if opts.Project == "" {
		return opts, errors.WithHint(
			errors.NewConfigError("initializationOptions.project is required"),
			`set initializationOptions to {"project": "namespace/project"}`)
	}
	if !projectPattern.MatchString(opts.Project) {
		return opts, errors.NewConfigError("project %q is not of the form namespace/project", opts.Project)
	}
	if opts.CacheTTLSeconds != nil && *opts.CacheTTLSeconds < 1 {
		return opts, errors.NewConfigError("cacheTtlSeconds must be >= 1, got %d", *opts.CacheTTLSeconds)
	}
	return opts, nil
}

// initialized starts loading every fetched kind so the first completion of
// each kind is usually served from cache.
func (s *Session) initialized(ctx context.Context, c *glsp.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady || s.prefetch != nil {
		logger.FromContext(ctx, s.logger).Debugw("Ignoring initialized", logger.FieldState, s.state.String())
		return nil
	}

	prefetchCtx, cancel := context.WithCancel(context.Background())
	s.prefetch = cancel
	cache, project, notify := s.cache, s.project, c.Notify
	go func() {
		defer cancel()
		start := time.Now()
		if err := cache.Prefetch(prefetchCtx, project); err != nil {
			if prefetchCtx.Err() != nil || errors.IsNotReadyError(err) {
				return
			}
			s.logger.Warnw("Prefetch failed", logger.FieldProject, project, logger.FieldError, err)
			logMessage(notify, protocol.MessageTypeWarning, "gitlab-ls: could not load project data: "+err.Error())
			return
		}
		s.logger.Infow("Prefetch complete",
			logger.FieldProject, project,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}()
	return nil
}

func (s *Session) shutdownRequest(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateReady:
		s.state = StateShuttingDown
		s.shutdown = true
		logger.FromContext(ctx, s.logger).Infow("Shutdown requested", "open_documents", s.docs.Len())
		return nil
	case StateShuttingDown:
		return nil
	default:
		return errors.Wrapf(errors.ErrNotReady, "shutdown while %s", s.state)
	}
}

func (s *Session) exit(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	logger.FromContext(ctx, s.logger).Infow("Exit", "after_shutdown", s.shutdown)
	s.teardownLocked()
}

// teardownLocked releases the cache and documents together. s.mu must be held.
func (s *Session) teardownLocked() {
	if s.prefetch != nil {
		s.prefetch()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if n := s.docs.Len(); n > 0 {
		s.metrics.DocumentsClosed(n)
	}
	s.docs.Reset()
	s.state = StateStopped
}

// configurationChanged drops the cached project data so the next completion
// of each kind fetches it again.
func (s *Session) configurationChanged(ctx context.Context, c *glsp.Context) error {
	if err := s.require(c.Method, StateReady, StateShuttingDown); err != nil {
		return err
	}
	s.mu.Lock()
	cache, project := s.cache, s.project
	s.mu.Unlock()
	if cache == nil {
		return nil
	}
	for _, kind := range resource.FetchedKinds {
		cache.Invalidate(project, kind)
	}
	logger.FromContext(ctx, s.logger).Infow("Configuration changed, cached data dropped", logger.FieldProject, project)
	return nil
}

func (s *Session) didOpen(ctx context.Context, c *glsp.Context) error {
	if err := s.require(c.Method, StateReady); err != nil {
		return err
	}
	var params protocol.DidOpenTextDocumentParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	doc := params.TextDocument
	uri := string(doc.URI)
	log := logger.FromContext(ctx, s.logger)

	reopened, err := s.docs.Open(uri, doc.LanguageID, doc.Text, doc.Version)
	if err != nil {
		s.documentError(log, c.Notify, uri, err)
		return err
	}
	if reopened {
		log.Warnw("Document reopened, content replaced", logger.FieldURI, uri, logger.FieldVersion, doc.Version)
	} else {
		s.metrics.DocumentOpened()
		log.Debugw("Document opened",
			logger.FieldURI, uri,
			logger.FieldVersion, doc.Version,
			logger.FieldLength, len(doc.Text))
	}
	return nil
}

func (s *Session) didChange(ctx context.Context, c *glsp.Context) error {
	if err := s.require(c.Method, StateReady); err != nil {
		return err
	}
	var params protocol.DidChangeTextDocumentParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	uri := string(params.TextDocument.URI)
	log := logger.FromContext(ctx, s.logger)

	changes := make([]document.Change, 0, len(params.ContentChanges))
	for _, raw := range params.ContentChanges {
		switch ch := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			changes = append(changes, document.Change{Range: ch.Range, Text: ch.Text})
		case protocol.TextDocumentContentChangeEventWhole:
			changes = append(changes, document.Change{Text: ch.Text})
		}
	}

	snap, err := s.docs.ApplyChanges(uri, params.TextDocument.Version, changes)
	if err != nil {
		s.documentError(log, c.Notify, uri, err)
		return err
	}
	log.Debugw("Document changed",
		logger.FieldURI, uri,
		logger.FieldVersion, snap.Version,
		logger.FieldRevision, snap.Revision,
		"changes", len(changes))
	return nil
}

func (s *Session) didClose(ctx context.Context, c *glsp.Context) error {
	if err := s.require(c.Method, StateReady); err != nil {
		return err
	}
	var params protocol.DidCloseTextDocumentParams
	if err := decodeParams(c, &params); err != nil {
		return err
	}
	uri := string(params.TextDocument.URI)
	log := logger.FromContext(ctx, s.logger)

	if err := s.docs.Close(uri); err != nil {
		s.documentError(log, c.Notify, uri, err)
		return err
	}
	s.metrics.DocumentsClosed(1)
	log.Debugw("Document closed", logger.FieldURI, uri)
	return nil
}

// documentError reports a document lifecycle error to the editor. A lost
// change additionally asks the user to reopen the file.
func (s *Session) documentError(log *zap.SugaredLogger, notify glsp.NotifyFunc, uri string, err error) {
	log.Warnw("Document error", logger.FieldURI, uri, logger.FieldError, err)
	logMessage(notify, protocol.MessageTypeWarning, "gitlab-ls: "+err.Error())
	if errors.Is(err, errors.ErrStaleVersion) {
		showMessage(notify, protocol.MessageTypeWarning,
			"gitlab-ls lost track of "+uri+". Close and reopen the file to restore completions.")
	}
}

func (s *Session) completion(ctx context.Context, c *glsp.Context) (any, error) {
	s.mu.Lock()
	state, project, cache := s.state, s.project, s.cache
	s.mu.Unlock()
	if state != StateReady && state != StateShuttingDown {
		return nil, errors.Wrapf(errors.ErrNotReady, "%s not allowed while %s", c.Method, state)
	}

	var params protocol.CompletionParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	uri := string(params.TextDocument.URI)

	// The snapshot is taken here, in arrival order, so the completion sees
	// every edit received before it and none after.
	snap, err := s.docs.Snapshot(uri)
	if err != nil {
		return nil, err
	}
	if !document.IsMarkdown(snap.LanguageID, snap.URI) {
		return emptyList(), nil
	}
	cursor := document.OffsetAt(snap.Text, params.Position)
	trig, ok := trigger.Detect(snap.Text, cursor)
	if !ok {
		return emptyList(), nil
	}

	return Deferred(func(ctx context.Context) (any, error) {
		return s.resolve(ctx, c.Notify, snap, trig, project, cache)
	}), nil
}

func (s *Session) resolve(ctx context.Context, notify glsp.NotifyFunc, snap document.Snapshot, trig trigger.Context, project string, cache *resource.Cache) (any, error) {
	log := logger.FromContext(ctx, s.logger)
	start := time.Now()

	var entries []resource.Entry
	if trig.Kind == resource.KindQuickAction {
		entries = completion.QuickActions()
	} else {
		var err error
		entries, err = cache.Get(ctx, project, trig.Kind)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrapf(errors.ErrRequestCancelled, "waiting for %s", trig.Kind)
			}
			if errors.IsFetchError(err) {
				log.Warnw("Completion without data", logger.FieldKind, trig.Kind.String(), logger.FieldError, err)
				logMessage(notify, protocol.MessageTypeWarning, "gitlab-ls: "+err.Error())
				return emptyList(), nil
			}
			return nil, err
		}
	}

	res, err := s.resolver.Resolve(ctx, trig, entries)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	s.metrics.Completion(trig.Kind.String(), elapsed, len(res.Candidates))
	log.Debugw("Completion",
		logger.FieldURI, snap.URI,
		logger.FieldKind, trig.Kind.String(),
		logger.FieldPrefix, trig.Prefix,
		logger.FieldCount, len(res.Candidates),
		"truncated", res.Truncated,
		logger.FieldDurationMS, elapsed.Milliseconds())

	return toCompletionList(snap.Text, res), nil
}

func emptyList() *protocol.CompletionList {
	return &protocol.CompletionList{Items: []protocol.CompletionItem{}}
}

func toCompletionList(text string, res completion.Result) *protocol.CompletionList {
	items := make([]protocol.CompletionItem, len(res.Candidates))
	for i, c := range res.Candidates {
		kind := completionItemKind(c.Kind)
		format := protocol.InsertTextFormatPlainText
		if c.Snippet {
			format = protocol.InsertTextFormatSnippet
		}
		item := protocol.CompletionItem{
			Label:            c.Label,
			Kind:             &kind,
			Detail:           stringPtrOrNil(c.Detail),
			SortText:         ptr(c.SortText),
			FilterText:       stringPtrOrNil(c.FilterText),
			InsertTextFormat: &format,
			TextEdit: protocol.TextEdit{
				Range: protocol.Range{
					Start: document.PositionAt(text, c.Start),
					End:   document.PositionAt(text, c.End),
				},
				NewText: c.InsertText,
			},
		}
		if c.Documentation != "" {
			item.Documentation = c.Documentation
		}
		items[i] = item
	}
	return &protocol.CompletionList{IsIncomplete: res.Truncated, Items: items}
}

func completionItemKind(kind resource.Kind) protocol.CompletionItemKind {
	switch kind {
	case resource.KindMember:
		return protocol.CompletionItemKindReference
	case resource.KindMilestone:
		return protocol.CompletionItemKindEvent
	case resource.KindLabel:
		// editors render a swatch when the documentation is a colour
		return protocol.CompletionItemKindColor
	case resource.KindQuickAction:
		return protocol.CompletionItemKindFunction
	default:
		return protocol.CompletionItemKindText
	}
}

func ptr[T any](v T) *T {
	return &v
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func logMessage(notify glsp.NotifyFunc, typ protocol.MessageType, msg string) {
	if notify == nil {
		return
	}
	notify(protocol.ServerWindowLogMessage, protocol.LogMessageParams{Type: typ, Message: msg})
}

func showMessage(notify glsp.NotifyFunc, typ protocol.MessageType, msg string) {
	if notify == nil {
		return
	}
	notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{Type: typ, Message: msg})
}
