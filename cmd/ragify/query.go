package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kellywsq03/RAGify/internal/rag"
)

func newQueryCmd() *cobra.Command {
	var (
		asJSON     bool
		showChunks bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{logToStderr: true})
			if err != nil {
				return err
			}
			defer a.Close()

			return runQuery(ctx, a.service, strings.Join(args, " "), cmd.OutOrStdout(), asJSON, showChunks)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	cmd.Flags().BoolVar(&showChunks, "chunks", false, "print the retrieved chunks")
	return cmd
}

type answerer interface {
	Answer(ctx context.Context, question string) (rag.Answer, error)
}

type queryOutput struct {
	Response    string   `json:"response"`
	PageContent []string `json:"page_content"`
	Pages       []int    `json:"pages"`
	NoResults   bool     `json:"no_results,omitempty"`
}

func runQuery(ctx context.Context, svc answerer, question string, out io.Writer, asJSON, showChunks bool) error {
	ans, err := svc.Answer(ctx, question)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(queryOutput{
			Response:    ans.Text,
			PageContent: ans.Chunks,
			Pages:       ans.Pages,
			NoResults:   ans.NoResults,
		})
	}

	fmt.Fprintln(out, ans.Text)
	if ans.NoResults {
		return nil
	}
	fmt.Fprintf(out, "\nPages: %v\n", ans.Pages)
	if showChunks {
		for i, c := range ans.Chunks {
			fmt.Fprintf(out, "\n[%d] page %d\n%s\n", i+1, ans.Pages[i], c)
		}
	}
	return nil
}
