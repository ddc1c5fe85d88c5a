package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chatmd/internal/archive"
	"github.com/dgallion1/chatmd/internal/export"
	"github.com/dgallion1/chatmd/internal/pipeline"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file|-]",
		Short: "Convert a saved chat page to Markdown",
		Long: `Export reads a saved chat page (a file, or stdin when the argument is "-" or
missing) and writes {title}_{date}.md into the output directory. --url names
the address the page was saved from and selects the platform.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, args)
		},
	}
	cmd.Flags().String("url", "", "address the page was saved from (required)")
	cmd.Flags().String("out", ".", "directory to write the document into")
	cmd.Flags().Bool("stdout", false, "print the document instead of writing a file")
	cmd.Flags().String("archive", "", "also store the document in this SQLite archive")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, args []string) error {
	pageURL := a.v.GetString("url")
	if pageURL == "" {
		return fmt.Errorf("--url is required")
	}

	src := "-"
	if len(args) == 1 {
		src = args[0]
	}
	data, err := readSource(cmd, src)
	if err != nil {
		return err
	}

	res, err := export.Run(bytes.NewReader(data), pageURL, export.Options{})
	if err != nil {
		return fmt.Errorf("export %s: %w", src, err)
	}
	a.log.Info("converted page",
		"platform", res.Platform,
		"title", res.Document.Title,
		"messages", len(res.Document.Messages),
		"skipped", res.Skipped,
	)

	if path := a.v.GetString("archive"); path != "" {
		if err := archiveResult(cmd.Context(), path, pageURL, data, res); err != nil {
			return err
		}
		a.log.Info("archived export", "path", path)
	}

	if a.v.GetBool("stdout") {
		_, err := io.WriteString(cmd.OutOrStdout(), res.Text)
		return err
	}

	dir := a.v.GetString("out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(dir, res.Filename)
	if err := os.WriteFile(out, []byte(res.Text), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func readSource(cmd *cobra.Command, src string) ([]byte, error) {
	if src == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return data, nil
}

func archiveResult(ctx context.Context, path, pageURL string, data []byte, res *export.Result) error {
	store, err := archive.New(path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Save(ctx, archive.Entry{
		URL:         pageURL,
		Platform:    res.Platform,
		Title:       res.Document.Title,
		Model:       res.Document.ModelName,
		Topic:       res.Document.TopicTag(),
		Filename:    res.Filename,
		ContentHash: pipeline.ContentHashHex(data),
		Markdown:    res.Text,
	})
	return err
}
