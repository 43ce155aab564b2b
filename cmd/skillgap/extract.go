package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-gap-wizard/internal/extraction"
	"github.com/jonathan/skill-gap-wizard/internal/observability"
	"github.com/jonathan/skill-gap-wizard/internal/upload"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON   bool
		showText bool
	)

	cmd := &cobra.Command{
		Use:   "extract FILE...",
		Short: "Run resume files through the extraction service",
		Long:  `Extract resume files one at a time, the same way the wizard processes an upload batch.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.ExtractionURL == "" {
				return fmt.Errorf("extraction_url is not configured (set EXTRACTION_URL)")
			}

			files := make([]extraction.File, 0, len(args))
			metas := make([]upload.FileMeta, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				name := filepath.Base(path)
				mimeType := http.DetectContentType(data)
				files = append(files, extraction.File{Name: name, MimeType: mimeType, Data: data})
				metas = append(metas, upload.FileMeta{Name: name, Size: int64(len(data)), MimeType: mimeType})
			}

			batch := upload.Empty().Append(metas...)
			client := extraction.NewClient(cfg.ExtractionURL, nil, opts.logger)
			err = extraction.Process(cmd.Context(), client, files, opts.logger, func(i int, res upload.Extraction) {
				batch, _ = batch.Resolve(batch.Files[i].ID, res)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(batch)
			case showText:
				_, err := fmt.Fprintln(out, batch.CombinedText())
				return err
			default:
				observability.NewPrinter(out).PrintUploads(batch)
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the upload batch as JSON")
	cmd.Flags().BoolVar(&showText, "text", false, "Print the combined extracted text")
	return cmd
}
