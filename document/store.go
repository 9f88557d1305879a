// Package document keeps the text of every document the editor has open,
// applying incremental edits in the order they arrive.
package document

import (
	"path"
	"strings"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/gitlab-ls/errors"
)

// Change is one edit of a didChange batch. A nil Range replaces the whole text.
type Change struct {
	Range *protocol.Range
	Text  string
}

// Snapshot is an immutable view of a document.
type Snapshot struct {
	URI        string
	LanguageID string
	Text       string
	// Version is the editor's version number.
	Version protocol.Integer
	// Revision counts accepted mutations: one per open and one per change batch.
	Revision uint64
}

type document struct {
	languageID string
	text       string
	version    protocol.Integer
	revision   uint64
	// desynced documents lost an edit; their text is discarded until a
	// whole-document change or re-open arrives.
	desynced bool
}

// Store holds open documents by URI.
type Store struct {
	mu      sync.RWMutex
	docs    map[string]*document
	maxOpen int
}

// NewStore returns a store that refuses to hold more than maxOpen documents.
// maxOpen <= 0 means unlimited.
func NewStore(maxOpen int) *Store {
	return &Store{
		docs:    make(map[string]*document),
		maxOpen: maxOpen,
	}
}

// Open registers a document. Re-opening a document that is already open
// replaces its content and reports reopened=true, unless the incoming
// version is older than the stored one, which is ErrDuplicateDocument.
func (s *Store) Open(uri, languageID, text string, version protocol.Integer) (reopened bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.docs[uri]; ok {
		if version < doc.version && !doc.desynced {
			return false, errors.Wrapf(errors.ErrDuplicateDocument,
				"%s is open at version %d, refusing version %d", uri, doc.version, version)
		}
		doc.languageID = languageID
		doc.text = text
		doc.version = version
		doc.revision++
		doc.desynced = false
		return true, nil
	}

	if s.maxOpen > 0 && len(s.docs) >= s.maxOpen {
		return false, errors.WithHintf(
			errors.Wrapf(errors.ErrTooManyDocuments, "limit %d reached opening %s", s.maxOpen, uri),
			"close unused markdown files or raise documents.max_open")
	}

	s.docs[uri] = &document{
		languageID: languageID,
		text:       text,
		version:    version,
		revision:   1,
	}
	return false, nil
}

// ApplyChanges applies a didChange batch. Edits are applied in order, each
// against the text produced by the previous one. A batch whose version is not
// newer than the stored version means a change was lost: the document is
// marked desynced and ErrStaleVersion is returned.
func (s *Store) ApplyChanges(uri string, version protocol.Integer, changes []Change) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return Snapshot{}, errors.Wrapf(errors.ErrUnknownDocument, "change for %s", uri)
	}

	if version <= doc.version {
		doc.desynced = true
		doc.text = ""
		return Snapshot{}, errors.WithHint(
			errors.Wrapf(errors.ErrStaleVersion, "%s: version %d is not newer than %d", uri, version, doc.version),
			"reopen the document to resynchronise")
	}

	if doc.desynced {
		if len(changes) == 0 || changes[0].Range != nil {
			doc.version = version
			return Snapshot{}, errors.WithHint(
				errors.Wrapf(errors.ErrStaleVersion, "%s is out of sync", uri),
				"reopen the document to resynchronise")
		}
		doc.desynced = false
	}

	text := doc.text
	for _, change := range changes {
		text = applyChange(text, change)
	}

	doc.text = text
	doc.version = version
	doc.revision++
	return doc.snapshot(uri), nil
}

// Close removes a document.
func (s *Store) Close(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[uri]; !ok {
		return errors.Wrapf(errors.ErrUnknownDocument, "close for %s", uri)
	}
	delete(s.docs, uri)
	return nil
}

// Snapshot returns the current content of a document.
func (s *Store) Snapshot(uri string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[uri]
	if !ok {
		return Snapshot{}, errors.Wrapf(errors.ErrUnknownDocument, "%s is not open", uri)
	}
	if doc.desynced {
		return Snapshot{}, errors.WithHint(
			errors.Wrapf(errors.ErrStaleVersion, "%s is out of sync", uri),
			"reopen the document to resynchronise")
	}
	return doc.snapshot(uri), nil
}

// Len returns the number of open documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Reset drops every document.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*document)
}

func (d *document) snapshot(uri string) Snapshot {
	return Snapshot{
		URI:        uri,
		LanguageID: d.languageID,
		Text:       d.text,
		Version:    d.version,
		Revision:   d.revision,
	}
}

func applyChange(text string, change Change) string {
	if change.Range == nil {
		return change.Text
	}
	start := OffsetAt(text, change.Range.Start)
	end := OffsetAt(text, change.Range.End)
	if end < start {
		start, end = end, start
	}
	var b strings.Builder
	b.Grow(len(text) - (end - start) + len(change.Text))
	b.WriteString(text[:start])
	b.WriteString(change.Text)
	b.WriteString(text[end:])
	return b.String()
}

var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdown":    true,
	".mkd":      true,
	".mdx":      true,
}

// IsMarkdown reports whether a document should get completions.
func IsMarkdown(languageID, uri string) bool {
	switch strings.ToLower(languageID) {
	case "markdown", "mdx", "gfm":
		return true
	}
	return markdownExtensions[strings.ToLower(path.Ext(uri))]
}
