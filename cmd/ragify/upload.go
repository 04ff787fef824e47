package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF to Supabase storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer log.Sync()

			uploader, err := newUploader(cfg, log.Underlying())
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			res, err := uploader.UploadPDF(cmd.Context(), userID, filepath.Base(args[0]), "application/pdf", f)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID to namespace the upload under")
	return cmd
}

func newFilesCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List a user's uploaded files with signed URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer log.Sync()

			uploader, err := newUploader(cfg, log.Underlying())
			if err != nil {
				return err
			}

			files, err := uploader.ListUserFiles(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, files)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID whose files to list")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
