package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chatmd/internal/archive"
)

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over an export archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd, strings.Join(args, " "))
		},
	}
	cmd.Flags().String("archive", "", "SQLite archive to search")
	cmd.Flags().String("index", "", "bleve index directory (default: in memory, rebuilt from the archive)")
	cmd.Flags().Int("limit", 10, "maximum number of results")
	return cmd
}

func (a *app) runSearch(cmd *cobra.Command, query string) error {
	path := a.v.GetString("archive")
	if path == "" {
		return errors.New("an archive is required (--archive or CHATMD_ARCHIVE)")
	}

	hits, err := searchArchive(cmd.Context(), path, a.v.GetString("index"), query, a.v.GetInt("limit"))
	if err != nil {
		return err
	}
	a.log.Debug("search finished", "query", query, "hits", len(hits))

	w := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%.3f  %s  %s  (%s)\n", h.Score, h.Entry.ID, h.Entry.Title, h.Entry.Filename)
	}
	return nil
}

func searchArchive(ctx context.Context, path, indexPath, query string, limit int) ([]archive.SearchHit, error) {
	store, err := archive.New(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	idx, err := archive.OpenIndex(indexPath)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	if err := store.AttachIndex(ctx, idx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	return store.Search(ctx, query, limit)
}
