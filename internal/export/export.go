// Package export turns a saved chat page into a finished Markdown document.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/chatmd/internal/document"
	"github.com/dgallion1/chatmd/internal/markup"
	"github.com/dgallion1/chatmd/internal/platform"
)

// Options controls a single export.
type Options struct {
	// Now fixes the export clock. Defaults to time.Now.
	Now func() time.Time
	// Registry selects the extractor. Defaults to the embedded profiles.
	Registry *platform.Registry
}

// Result is a rendered export.
type Result struct {
	Platform string
	Document *document.Document
	Text     string
	Filename string
	Skipped  int
}

// Run parses the page, picks the extractor for pageURL and renders the
// document. No partial result is returned on error.
func Run(r io.Reader, pageURL string, opts Options) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	reg := opts.Registry
	if reg == nil {
		reg = platform.NewRegistry(platform.DefaultProfiles(), now)
	}

	ext, err := reg.ForURL(pageURL)
	if err != nil {
		return nil, err
	}

	root, err := markup.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", ext.Name(), err)
	}

	names, err := reg.Profiles().NamePattern()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", ext.Name(), err)
	}

	t := ext.Extract(root)
	doc := document.New(t, now(), names)
	return &Result{
		Platform: t.Platform,
		Document: doc,
		Text:     doc.Render(),
		Filename: doc.Filename(),
		Skipped:  t.Skipped,
	}, nil
}
