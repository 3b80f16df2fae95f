package document

import (
	"sync"
	"testing"
	"testing/fstest"

	"github.com/m4xw311/docchat/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutGet(t *testing.T) {
	s := NewStore()
	s.Put("deposition.md", "Witness stated X.")

	doc, ok := s.Lookup("deposition.md")
	require.True(t, ok)
	assert.Equal(t, Document{ID: "deposition.md", Content: "Witness stated X."}, doc)

	_, ok = s.Lookup("missing.md")
	assert.False(t, ok)

	_, err := s.Get("missing.md")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `"missing.md"`)
}

func TestStoreListKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Put("b.md", "1")
	s.Put("a.md", "2")
	s.Put("c.md", "3")
	s.Put("b.md", "overwritten")

	assert.Equal(t, []string{"b.md", "a.md", "c.md"}, s.List())
	assert.Equal(t, 3, s.Len())

	doc, _ := s.Lookup("b.md")
	assert.Equal(t, "overwritten", doc.Content, "last write wins")
}

func TestNewStoreFromIsSorted(t *testing.T) {
	s := NewStoreFrom(Samples())
	assert.Equal(t, []string{
		"deposition.md", "financials.docx", "outlook.pdf", "plan.md", "report.pdf", "spec.txt",
	}, s.List())
}

func TestStoreMerge(t *testing.T) {
	a := NewStoreFrom(map[string]string{"x": "1"})
	b := NewStoreFrom(map[string]string{"x": "2", "y": "3"})
	a.Merge(b)

	assert.Equal(t, []string{"x", "y"}, a.List())
	doc, _ := a.Lookup("x")
	assert.Equal(t, "2", doc.Content)
}

func TestStoreUpdate(t *testing.T) {
	s := NewStoreFrom(map[string]string{"a.md": "one two one"})
	doc, err := s.Update("a.md", func(c string) string { return c + "!" })
	require.NoError(t, err)
	assert.Equal(t, "one two one!", doc.Content)

	got, _ := s.Lookup("a.md")
	assert.Equal(t, doc, got)

	_, err = s.Update("b.md", func(c string) string { return c })
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []string{"a.md"}, s.List())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Put("shared.md", "content")
		}()
		go func() {
			defer wg.Done()
			s.Lookup("shared.md")
			s.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"shared.md"}, s.List())
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"plan.md":              {Data: []byte("the plan")},
		"notes/meeting.txt":    {Data: []byte("meeting notes")},
		"notes/image.png":      {Data: []byte{0x89}},
		".docchat/config.yaml": {Data: []byte("llm: mock")},
		".docchat/secret.md":   {Data: []byte("hidden")},
	}

	s := NewStore()
	loaded, err := LoadFS(s, fsys, []string{"**/*.md", "**/*.txt"}, []string{".docchat", ".docchat/**"})
	require.NoError(t, err)

	assert.Equal(t, []string{"notes/meeting.txt", "plan.md"}, loaded)
	doc, ok := s.Lookup("notes/meeting.txt")
	require.True(t, ok)
	assert.Equal(t, "meeting notes", doc.Content)

	_, ok = s.Lookup(".docchat/secret.md")
	assert.False(t, ok)
}

func TestLoadFSDeduplicatesOverlappingGlobs(t *testing.T) {
	fsys := fstest.MapFS{"plan.md": {Data: []byte("the plan")}}
	loaded, err := LoadFS(NewStore(), fsys, []string{"*.md", "**/*.md"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"plan.md"}, loaded)
}

func TestLoadFSInvalidPattern(t *testing.T) {
	_, err := LoadFS(NewStore(), fstest.MapFS{}, []string{"[unclosed"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid document glob")
}

func TestLoadFilesFromDisk(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	loaded, err := LoadFiles(s, dir, []string{"**/*.md"}, nil)
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Zero(t, s.Len())
}

func TestURIRoundTrip(t *testing.T) {
	for _, id := range []string{"plan.md", "notes/meeting notes.txt", "a&b=c+d.md", "über.md"} {
		uri := URI(id)
		assert.True(t, len(uri) > len(ListURI+"/"), uri)
		got, ok := IDFromURI(uri)
		require.True(t, ok, uri)
		assert.Equal(t, id, got)
	}
	assert.Equal(t, "docs://documents/plan.md", URI("plan.md"))
	assert.Equal(t, "docs://documents/notes%2Fmeeting.txt", URI("notes/meeting.txt"))

	_, ok := IDFromURI(ListURI)
	assert.False(t, ok)
	_, ok = IDFromURI("file:///plan.md")
	assert.False(t, ok)
}
