package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/loader"
)

var errInvalidInput = errors.New("invalid input")

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerIndexTool()
	s.registerQueryTool()
}

// ===== INDEX =====

type indexDocumentsInput struct {
	PDFPath string `json:"pdf_path,omitempty" jsonschema:"Local path of a PDF to index"`
	Bucket  string `json:"bucket,omitempty" jsonschema:"Supabase storage bucket of the document (requires path)"`
	Path    string `json:"path,omitempty" jsonschema:"Object path inside the bucket (requires bucket)"`
}

type indexDocumentsOutput struct {
	Source     string `json:"source" jsonschema:"Source that was indexed"`
	Documents  int    `json:"documents" jsonschema:"Number of loaded documents (PDF pages)"`
	Chunks     int    `json:"chunks" jsonschema:"Number of chunks written to the index"`
	Collection string `json:"collection,omitempty" jsonschema:"Active index collection"`
}

func (in indexDocumentsInput) source() (loader.Source, error) {
	remote := in.Bucket != "" || in.Path != ""
	if remote && (in.Bucket == "" || in.Path == "") {
		return loader.Source{}, fmt.Errorf("%w: bucket and path must be given together", errInvalidInput)
	}
	if remote && in.PDFPath != "" {
		return loader.Source{}, fmt.Errorf("%w: give either pdf_path or bucket and path, not both", errInvalidInput)
	}
	return loader.Source{PDFPath: in.PDFPath, Bucket: in.Bucket, ObjectPath: in.Path}, nil
}

func (s *Server) registerIndexTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_documents",
		Description: "Rebuild the document index from a local PDF, a PDF in Supabase storage, or (with no arguments) the default Markdown document. Replaces the previous index.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args indexDocumentsInput) (*mcp.CallToolResult, indexDocumentsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "index_documents")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "index_documents")
			s.metrics.RecordInvocation(ctx, "index_documents", time.Since(start), toolErr)
		}()

		src, err := args.source()
		if err != nil {
			toolErr = err
			return nil, indexDocumentsOutput{}, err
		}

		res, err := s.pipeline.Index(ctx, src)
		if err != nil {
			toolErr = fmt.Errorf("indexing failed: %w", err)
			s.logger.Warn("index_documents failed", zap.String("source", src.String()), zap.Error(err))
			return nil, indexDocumentsOutput{}, toolErr
		}

		output := indexDocumentsOutput{
			Source:     res.Source,
			Documents:  res.Documents,
			Chunks:     res.Chunks,
			Collection: res.Index.Collection,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Indexed %d chunks from %s", output.Chunks, output.Source)},
			},
		}, output, nil
	})
}

// ===== QUERY =====

type queryDocumentsInput struct {
	Question string `json:"question" jsonschema:"Question to answer from the indexed documents"`
}

type queryDocumentsOutput struct {
	Answer    string   `json:"answer" jsonschema:"Generated answer, or 'Unable to find matching results.'"`
	Chunks    []string `json:"chunks" jsonschema:"Retrieved chunk texts, best match first"`
	Pages     []int    `json:"pages" jsonschema:"1-based page of each chunk, 0 when unknown"`
	NoResults bool     `json:"no_results,omitempty" jsonschema:"True when nothing matched and no answer was generated"`
}

func (s *Server) registerQueryTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_documents",
		Description: "Answer a question using only the indexed documents. Returns the answer with the supporting chunks and their page numbers.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryDocumentsInput) (*mcp.CallToolResult, queryDocumentsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "query_documents")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "query_documents")
			s.metrics.RecordInvocation(ctx, "query_documents", time.Since(start), toolErr)
		}()

		if strings.TrimSpace(args.Question) == "" {
			toolErr = fmt.Errorf("%w: question is required", errInvalidInput)
			return nil, queryDocumentsOutput{}, toolErr
		}

		answer, err := s.pipeline.Answer(ctx, args.Question)
		if err != nil {
			toolErr = fmt.Errorf("query failed: %w", err)
			return nil, queryDocumentsOutput{}, toolErr
		}

		output := queryDocumentsOutput{
			Answer:    answer.Text,
			Chunks:    answer.Chunks,
			Pages:     answer.Pages,
			NoResults: answer.NoResults,
		}
		if output.Chunks == nil {
			output.Chunks = []string{}
		}
		if output.Pages == nil {
			output.Pages = []int{}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: output.Answer},
			},
		}, output, nil
	})
}
