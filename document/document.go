// Package document holds the documents that can be pulled into a chat line
// with an @id reference.
package document

import (
	"sync"

	"github.com/m4xw311/docchat/errors"
)

var ErrNotFound = errors.Sentinel("document not found")

// Document is a named block of text. Its content never changes after it is
// stored; a later Put with the same id replaces the whole document.
type Document struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Store maps document ids to documents and remembers insertion order.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	docs  map[string]Document
	order []string
}

func NewStore() *Store {
	return &Store{docs: make(map[string]Document)}
}

// NewStoreFrom returns a store holding docs. Map iteration order is not
// stable, so ids are inserted sorted.
func NewStoreFrom(docs map[string]string) *Store {
	s := NewStore()
	for _, id := range sortedKeys(docs) {
		s.Put(id, docs[id])
	}
	return s
}

// Put stores content under id, replacing any previous content.
// A replaced document keeps its original position in List.
func (s *Store) Put(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		s.order = append(s.order, id)
	}
	s.docs[id] = Document{ID: id, Content: content}
}

// Lookup returns the document stored under id.
func (s *Store) Lookup(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// Get is Lookup with an error wrapping ErrNotFound for missing ids.
func (s *Store) Get(id string) (Document, error) {
	doc, ok := s.Lookup(id)
	if !ok {
		return Document{}, errors.Wrapf(ErrNotFound, "%q", id)
	}
	return doc, nil
}

// Update replaces the content of an existing document with fn applied to it,
// holding the write lock throughout.
func (s *Store) Update(id string, fn func(content string) string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, errors.Wrapf(ErrNotFound, "%q", id)
	}
	doc.Content = fn(doc.Content)
	s.docs[id] = doc
	return doc, nil
}

// List returns the stored ids in insertion order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Merge copies every document of other into s.
func (s *Store) Merge(other *Store) {
	for _, id := range other.List() {
		if doc, ok := other.Lookup(id); ok {
			s.Put(doc.ID, doc.Content)
		}
	}
}
