package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chatmd/internal/document"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.md>",
		Short: "Summarize an exported document",
		Long: `Inspect reads an exported document back and prints its frontmatter, title,
message headers and code block languages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(cmd, args[0])
		},
	}
	cmd.Flags().Bool("json", false, "output the summary as JSON")
	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	s, err := document.Inspect(src)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	w := cmd.OutOrStdout()
	if a.v.GetBool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Title:    %s\n", s.Title)
	fmt.Fprintf(w, "Date:     %s\n", s.Meta.Date)
	fmt.Fprintf(w, "Model:    %s\n", s.Meta.Model)
	fmt.Fprintf(w, "Topic:    %s\n", s.Meta.Topic)
	fmt.Fprintf(w, "Tags:     %s\n", strings.Join(s.Meta.Tags, ", "))
	fmt.Fprintf(w, "Messages: %d\n", len(s.MessageHeaders))
	for _, h := range s.MessageHeaders {
		fmt.Fprintf(w, "  - %s\n", h)
	}
	fmt.Fprintf(w, "Code:     %d block(s)", s.CodeBlocks)
	if len(s.CodeLanguages) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(s.CodeLanguages, ", "))
	}
	fmt.Fprintln(w)
	return nil
}
