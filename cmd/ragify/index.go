package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kellywsq03/RAGify/internal/loader"
	"github.com/kellywsq03/RAGify/internal/rag"
	"github.com/kellywsq03/RAGify/internal/watch"
)

type indexFlags struct {
	pdf    string
	bucket string
	path   string
	watch  bool
}

// source turns the flags into a loader source. No flags selects the
// configured Markdown document.
func (f indexFlags) source() (loader.Source, error) {
	remote := f.bucket != "" || f.path != ""
	if f.pdf != "" && remote {
		return loader.Source{}, errors.New("--pdf cannot be combined with --bucket/--path")
	}
	if remote && (f.bucket == "" || f.path == "") {
		return loader.Source{}, errors.New("--bucket and --path must be given together")
	}
	if f.watch && remote {
		return loader.Source{}, errors.New("--watch only works with local files")
	}
	return loader.Source{PDFPath: f.pdf, Bucket: f.bucket, ObjectPath: f.path}, nil
}

func newIndexCmd() *cobra.Command {
	var flags indexFlags

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector index from a document",
		Long: `Load a document, split it into chunks and rebuild the vector index.

With no flags the configured Markdown file (loader.markdown_path) is indexed.
The previous index is replaced only after every chunk has been embedded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := flags.source()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{logToStderr: true})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if err := runIndex(ctx, a.service, src, out); err != nil {
				return err
			}
			if !flags.watch {
				return nil
			}

			path := src.PDFPath
			if path == "" {
				path = a.cfg.Loader.MarkdownPath
			}
			w, err := watch.New(path, 0, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s for changes (Ctrl-C to stop)\n", w.Path())
			return w.Run(ctx, func(ctx context.Context) error {
				return runIndex(ctx, a.service, src, out)
			})
		},
	}

	cmd.Flags().StringVar(&flags.pdf, "pdf", "", "local PDF to index")
	cmd.Flags().StringVar(&flags.bucket, "bucket", "", "Supabase storage bucket")
	cmd.Flags().StringVar(&flags.path, "path", "", "object path inside the bucket")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "reindex whenever the local file changes")
	return cmd
}

type indexer interface {
	Index(ctx context.Context, src loader.Source) (rag.IndexResult, error)
}

func runIndex(ctx context.Context, svc indexer, src loader.Source, out io.Writer) error {
	res, err := svc.Index(ctx, src)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Indexed %s: %d documents, %d chunks into %q\n",
		res.Source, res.Documents, res.Chunks, res.Index.Collection)
	return nil
}
