// Package loader reads source documents from local files or remote object
// storage.
//
// PDFs produce one Document per page with 1-based "page" and "total_pages"
// metadata. Markdown and plain text produce a single Document. Every
// Document carries a "source" entry.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/storage"
)

// ErrNotFound indicates a local source file does not exist.
var ErrNotFound = errors.New("document not found")

// Source selects what to load. At most one of PDFPath or the remote pair
// is set; the zero Source means the configured Markdown file.
type Source struct {
	PDFPath    string
	Bucket     string
	ObjectPath string
}

// IsRemote reports whether the source refers to object storage.
func (s Source) IsRemote() bool {
	return s.Bucket != "" || s.ObjectPath != ""
}

// String describes the source for logs and span attributes.
func (s Source) String() string {
	switch {
	case s.IsRemote():
		return "supabase://" + s.Bucket + "/" + s.ObjectPath
	case s.PDFPath != "":
		return s.PDFPath
	default:
		return "default markdown"
	}
}

// Config holds loader settings.
type Config struct {
	MarkdownPath string
	Supabase     config.SupabaseConfig
}

// Loader loads documents.
type Loader struct {
	config Config
	remote storage.Downloader
	logger *zap.Logger
}

// New creates a Loader. remote may be nil, in which case a Supabase client
// is created on first remote load from cfg.Supabase.
func New(cfg Config, remote storage.Downloader, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{config: cfg, remote: remote, logger: logger}
}

// Load dispatches on src.
func (l *Loader) Load(ctx context.Context, src Source) ([]Document, error) {
	switch {
	case src.IsRemote():
		return l.LoadRemote(ctx, src.Bucket, src.ObjectPath)
	case src.PDFPath != "":
		return l.LoadPDF(ctx, src.PDFPath)
	default:
		return l.LoadMarkdown(ctx, l.config.MarkdownPath)
	}
}

// LoadPDF loads a local PDF, one Document per page.
func (l *Loader) LoadPDF(ctx context.Context, pdfPath string) ([]Document, error) {
	ctx, span := l.startSpan(ctx, "loader.LoadPDF", pdfPath)
	defer span.End()

	docs, err := loadPDFFile(ctx, pdfPath, pdfPath)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.Int("documents", len(docs)))
	l.logger.Info("pdf loaded", zap.String("path", pdfPath), zap.Int("pages", len(docs)))
	return docs, nil
}

// LoadMarkdown loads a Markdown or text file as a single Document.
func (l *Loader) LoadMarkdown(ctx context.Context, mdPath string) ([]Document, error) {
	ctx, span := l.startSpan(ctx, "loader.LoadMarkdown", mdPath)
	defer span.End()

	docs, err := loadTextFile(ctx, mdPath, mdPath)
	if err != nil {
		return nil, spanError(span, err)
	}
	l.logger.Info("markdown loaded", zap.String("path", mdPath))
	return docs, nil
}

// LoadRemote downloads bucket/objectPath into a temporary file, loads it by
// extension (PDF unless it ends in .md, .markdown or .txt) and removes the
// temporary file before returning.
//
// Missing Supabase credentials fail with config.ErrConfigurationMissing
// before any network call.
func (l *Loader) LoadRemote(ctx context.Context, bucket, objectPath string) ([]Document, error) {
	source := Source{Bucket: bucket, ObjectPath: objectPath}.String()
	ctx, span := l.startSpan(ctx, "loader.LoadRemote", source)
	defer span.End()

	if bucket == "" || objectPath == "" {
		return nil, spanError(span, fmt.Errorf("remote source needs both bucket and path, got %q and %q", bucket, objectPath))
	}
	if err := l.config.Supabase.Require(); err != nil {
		return nil, spanError(span, err)
	}

	remote := l.remote
	if remote == nil {
		store, err := storage.NewSupabaseStore(l.config.Supabase, l.logger)
		if err != nil {
			return nil, spanError(span, err)
		}
		remote = store
	}

	data, err := remote.Download(ctx, bucket, objectPath)
	if err != nil {
		return nil, spanError(span, err)
	}

	tmp, err := os.CreateTemp("", "ragify-*"+path.Ext(objectPath))
	if err != nil {
		return nil, spanError(span, fmt.Errorf("creating temp file: %w", err))
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			l.logger.Warn("failed to remove temp file", zap.String("path", tmp.Name()), zap.Error(rmErr))
		}
	}()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return nil, spanError(span, fmt.Errorf("writing temp file: %w", err))
	}

	var docs []Document
	if isTextPath(objectPath) {
		docs, err = loadTextFile(ctx, tmp.Name(), source)
	} else {
		docs, err = loadPDFFile(ctx, tmp.Name(), source)
	}
	if err != nil {
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.Int("documents", len(docs)), attribute.Int("bytes", len(data)))
	l.logger.Info("remote document loaded",
		zap.String("bucket", bucket),
		zap.String("path", objectPath),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}

func (l *Loader) startSpan(ctx context.Context, name, source string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("ragify/loader").Start(ctx, name)
	span.SetAttributes(attribute.String("source", source))
	return ctx, span
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func isTextPath(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".md", ".markdown", ".txt":
		return true
	default:
		return false
	}
}

func openLocal(p string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, nil, fmt.Errorf("opening %s: %w", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s is a directory", p)
	}
	return f, info, nil
}

func loadPDFFile(ctx context.Context, p, source string) ([]Document, error) {
	f, info, err := openLocal(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing pdf %s: %w", source, err)
	}
	return fromSchema(raw, source), nil
}

func loadTextFile(ctx context.Context, p, source string) ([]Document, error) {
	f, _, err := openLocal(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return fromSchema(raw, source), nil
}

func fromSchema(raw []schema.Document, source string) []Document {
	docs := make([]Document, 0, len(raw))
	for _, d := range raw {
		md := make(map[string]any, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			md[k] = v
		}
		md[MetadataSource] = source
		docs = append(docs, Document{Text: d.PageContent, Metadata: md})
	}
	return docs
}
