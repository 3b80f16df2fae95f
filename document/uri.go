package document

import (
	"net/url"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// Resource URIs under which a document server publishes its documents.
const (
	ListURI     = "docs://documents"
	URITemplate = "docs://documents/{doc_id}"
)

var docTemplate = uritemplate.MustNew(URITemplate)

// URI returns the resource URI of the document id. Every byte outside the
// unreserved set, including "/", is percent-encoded so the URI matches
// URITemplate.
func URI(id string) string {
	return ListURI + "/" + strings.ReplaceAll(url.QueryEscape(id), "+", "%20")
}

// IDFromURI is the inverse of URI.
func IDFromURI(uri string) (string, bool) {
	vals := docTemplate.Match(uri)
	if vals == nil {
		return "", false
	}
	id := vals.Get("doc_id").String()
	return id, id != ""
}
