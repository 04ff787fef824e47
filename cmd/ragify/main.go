// Package main implements the ragify command: index documents, answer
// questions over them, and serve the pipeline over HTTP or MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	envFiles   []string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragify",
		Short: "Retrieval-augmented question answering over your documents",
		Long: `ragify indexes a Markdown file or a PDF (local or in Supabase storage)
into a local vector index and answers questions using only that content.

Configuration is read from ~/.config/ragify/config.yaml and the environment
(CHROMA_PATH, GOOGLE_API_KEY, SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY).
Variables in .env and consts.env are loaded first.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/ragify/config.yaml)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env,consts.env)")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newQueryCmd(),
		newUploadCmd(),
		newFilesCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ragify %s\n", version)
			fmt.Fprintf(out, "Git Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}

// exitCode maps cancellation to 130 like a shell would.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}
