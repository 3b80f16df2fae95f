// Package docserver publishes a document store over the Model Context
// Protocol. It offers the document tools, one resource listing the document
// ids, one resource template per document and the summarize and format
// prompts.
package docserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const Name = "docserver"

type Server struct {
	store  *document.Store
	server *mcp.Server
}

// New builds a server over store. Tool edits are visible to later reads.
func New(store *document.Store, version string) *Server {
	s := &Server{
		store:  store,
		server: mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil),
	}
	for _, t := range tools.DocumentTools(store) {
		s.addTool(t)
	}
	s.addResources()
	s.addPrompts()
	return s
}

// Run serves a single session on t until the client disconnects or ctx is
// done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	log.Info().Int("documents", s.store.Len()).Msg("serving documents over MCP")
	return s.server.Run(ctx, t)
}

// Connect starts a session on t without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) addTool(t tools.Tool) {
	s.server.AddTool(&mcp.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]interface{}{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(errors.Wrapf(err, "invalid arguments for tool '%s'", t.Name())), nil
			}
		}
		log.Debug().Str("tool", t.Name()).Interface("args", args).Msg("tool call")
		out, err := t.Execute(ctx, args)
		if err != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: out}}}, nil
	})
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func (s *Server) addResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         document.ListURI,
		Name:        "documents",
		Description: "Ids of all documents, as a JSON array",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		data, err := json.Marshal(s.store.List())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode document list")
		}
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}}}, nil
	})

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: document.URITemplate,
		Name:        "document",
		Description: "Content of a single document",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		id, ok := document.IDFromURI(req.Params.URI)
		if !ok {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		doc, found := s.store.Lookup(id)
		if !found {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     doc.Content,
		}}}, nil
	})
}

var docIDArgument = &mcp.PromptArgument{
	Name:        "doc_id",
	Description: "Id of the document",
	Required:    true,
}

const formatPrompt = `Your goal is to reformat a document to be written with markdown syntax.

The id of the document you need to reformat is:
<document_id>
%s
</document_id>

Add in headers, bullet points, tables, etc as necessary. Feel free to add in extra text, but don't change the meaning of the report.
Use the 'edit_document' tool to edit the document. After the document has been edited, respond with the final version of the doc. Don't explain your changes.`

const summarizePrompt = `Your goal is to summarize the document below in a few concise sentences.

The id of the document is:
<document_id>
%s
</document_id>

<document>
%s
</document>

Respond with the summary only.`

func (s *Server) addPrompts() {
	s.server.AddPrompt(&mcp.Prompt{
		Name:        "format",
		Description: "Rewrites the contents of the document in Markdown format.",
		Arguments:   []*mcp.PromptArgument{docIDArgument},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		id := req.Params.Arguments["doc_id"]
		if _, err := s.store.Get(id); err != nil {
			return nil, err
		}
		return userPrompt("Format "+id, fmt.Sprintf(formatPrompt, id)), nil
	})

	s.server.AddPrompt(&mcp.Prompt{
		Name:        "summarize",
		Description: "Summarizes the contents of the document in a few sentences.",
		Arguments:   []*mcp.PromptArgument{docIDArgument},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		id := req.Params.Arguments["doc_id"]
		doc, err := s.store.Get(id)
		if err != nil {
			return nil, err
		}
		return userPrompt("Summarize "+id, fmt.Sprintf(summarizePrompt, id, doc.Content)), nil
	})
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: text},
		}},
	}
}
