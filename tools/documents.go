package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
)

// DocumentTools returns the tools operating on store: list_documents,
// read_doc_contents and edit_document.
func DocumentTools(store *document.Store) []Tool {
	return []Tool{
		&ListDocumentsTool{store: store},
		&ReadDocumentTool{store: store},
		&EditDocumentTool{store: store},
	}
}

// ListDocumentsTool returns the ids of all documents.
type ListDocumentsTool struct {
	store *document.Store
}

func (t *ListDocumentsTool) Name() string { return "list_documents" }
func (t *ListDocumentsTool) Description() string {
	return "Lists the ids of all documents, one per line."
}
func (t *ListDocumentsTool) InputSchema() map[string]interface{} {
	return ObjectSchema(nil)
}

func (t *ListDocumentsTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return strings.Join(t.store.List(), "\n"), nil
}

// ReadDocumentTool implements the tool for reading a document.
type ReadDocumentTool struct {
	store *document.Store
}

func (t *ReadDocumentTool) Name() string { return "read_doc_contents" }
func (t *ReadDocumentTool) Description() string {
	return "Read the contents of a document and return it as a string."
}
func (t *ReadDocumentTool) InputSchema() map[string]interface{} {
	return ObjectSchema(map[string]string{"doc_id": "Id of the document to read"}, "doc_id")
}

func (t *ReadDocumentTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	id, err := StringArg(t.Name(), args, "doc_id")
	if err != nil {
		return "", err
	}
	doc, err := t.store.Get(id)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// EditDocumentTool replaces text inside a document.
type EditDocumentTool struct {
	store *document.Store
}

func (t *EditDocumentTool) Name() string { return "edit_document" }
func (t *EditDocumentTool) Description() string {
	return "Edit a document by replacing every occurrence of a string in the document's content with a new string."
}
func (t *EditDocumentTool) InputSchema() map[string]interface{} {
	return ObjectSchema(map[string]string{
		"doc_id":  "Id of the document that will be edited",
		"old_str": "The text to replace. Must match exactly, including whitespace",
		"new_str": "The new text to insert in place of the old text",
	}, "doc_id", "old_str", "new_str")
}

func (t *EditDocumentTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var id, oldStr, newStr string
	for key, dst := range map[string]*string{"doc_id": &id, "old_str": &oldStr, "new_str": &newStr} {
		v, err := StringArg(t.Name(), args, key)
		if err != nil {
			return "", err
		}
		*dst = v
	}
	if oldStr == "" {
		return "", errors.New("tool '%s': old_str must not be empty", t.Name())
	}

	var n int
	_, err := t.store.Update(id, func(content string) string {
		n = strings.Count(content, oldStr)
		return strings.ReplaceAll(content, oldStr, newStr)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", n, id), nil
}
