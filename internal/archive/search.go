package archive

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
)

// indexedExport is the document stored in the search index for an entry.
type indexedExport struct {
	Title    string `json:"title"`
	Model    string `json:"model"`
	Topic    string `json:"topic"`
	Platform string `json:"platform"`
	Markdown string `json:"markdown"`
}

// SearchHit is one full-text match, most relevant first.
type SearchHit struct {
	Entry Entry   `json:"export"`
	Score float64 `json:"score"`
}

// Index is a full-text index over archived exports.
type Index struct {
	idx bleve.Index
}

// OpenIndex opens the index at path, creating it if it does not exist.
// An empty path yields an in-memory index.
func OpenIndex(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		return &Index{idx: idx}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		return &Index{idx: idx}, nil
	}

	idx, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Close closes the index.
func (x *Index) Close() error {
	return x.idx.Close()
}

// DocCount returns the number of indexed exports.
func (x *Index) DocCount() (uint64, error) {
	return x.idx.DocCount()
}

func (x *Index) add(e Entry) error {
	return x.idx.Index(e.ID, indexedExport{
		Title:    e.Title,
		Model:    e.Model,
		Topic:    e.Topic,
		Platform: e.Platform,
		Markdown: e.Markdown,
	})
}

func (x *Index) remove(id string) error {
	return x.idx.Delete(id)
}

func (x *Index) search(q string, limit int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(q))
	req.Size = limit
	return x.idx.Search(req)
}

// AttachIndex makes Save and Delete keep idx current. When idx is empty
// every archived export is indexed first.
func (s *Store) AttachIndex(ctx context.Context, idx *Index) error {
	n, err := idx.DocCount()
	if err != nil {
		return fmt.Errorf("count index: %w", err)
	}
	if n == 0 {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, title, model, topic, platform, markdown FROM exports`)
		if err != nil {
			return fmt.Errorf("reindex exports: %w", err)
		}
		defer rows.Close()

		batch := idx.idx.NewBatch()
		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.ID, &e.Title, &e.Model, &e.Topic, &e.Platform, &e.Markdown); err != nil {
				return fmt.Errorf("scan export: %w", err)
			}
			if err := batch.Index(e.ID, indexedExport{
				Title: e.Title, Model: e.Model, Topic: e.Topic, Platform: e.Platform, Markdown: e.Markdown,
			}); err != nil {
				return fmt.Errorf("index export %s: %w", e.ID, err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("reindex exports: %w", err)
		}
		if batch.Size() > 0 {
			if err := idx.idx.Batch(batch); err != nil {
				return fmt.Errorf("index batch: %w", err)
			}
		}
	}

	s.index = idx
	return nil
}

// ErrNoIndex is returned by Search when no index is attached.
var ErrNoIndex = errors.New("archive search is not enabled")

// Search returns archived exports matching q, without their Markdown.
func (s *Store) Search(ctx context.Context, q string, limit int) ([]SearchHit, error) {
	if s.index == nil {
		return nil, ErrNoIndex
	}
	res, err := s.index.search(q, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		e, err := s.Get(ctx, h.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		e.Markdown = ""
		hits = append(hits, SearchHit{Entry: e, Score: h.Score})
	}
	return hits, nil
}
