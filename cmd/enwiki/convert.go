// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/enwiki/internal/enex"
	"github.com/pdiddy/enwiki/internal/enml"
	"github.com/pdiddy/enwiki/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <source>",
	Short: "Convert ENEX notes to XWiki markup files without uploading",
	Long: `Convert parses the given ENEX file or directory and writes each note as
an .xwiki markup file with a YAML metadata sidecar, plus the note's
attachments. Useful for inspecting conversion output before an import,
or for feeding pages to the wiki through other channels.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("out", "converted", "output directory")
	convertCmd.Flags().String("space", "Evernote", "space path recorded in page metadata")
	convertCmd.Flags().Bool("attachments", true, "write attachment payloads alongside pages")

	rootCmd.AddCommand(convertCmd)
}

// pageMeta is the YAML sidecar written next to each converted page.
type pageMeta struct {
	Title       string    `yaml:"title"`
	Space       string    `yaml:"space"`
	Tags        []string  `yaml:"tags,omitempty"`
	Created     time.Time `yaml:"created,omitempty"`
	Updated     time.Time `yaml:"updated,omitempty"`
	SourceFile  string    `yaml:"source_file"`
	Attachments []string  `yaml:"attachments,omitempty"`
}

func runConvert(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	space, _ := cmd.Flags().GetString("space")
	writeAttachments, _ := cmd.Flags().GetBool("attachments")
	verbose, _ := cmd.Flags().GetBool("verbose")

	return convertSource(args[0], outDir, space, writeAttachments, verbose, os.Stdout)
}

// uniquePageName returns name if no page in this run has claimed it,
// otherwise appends an incrementing numeric suffix. Distinct titles can
// sanitize to the same page name, and silently overwriting the earlier
// page would drop a whole note. Matching is case-insensitive because the
// output lands on case-preserving filesystems.
func uniquePageName(used map[string]bool, name string) string {
	candidate := name
	for n := 1; used[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// convertSource converts every note under source into outDir, writing one
// status line per note to w.
func convertSource(source, outDir, space string, writeAttachments, verbose bool, w io.Writer) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	transformer := &enml.Transformer{}
	usedNames := make(map[string]bool)
	converted := 0

	err := enex.Walk(source, func(file string, note types.Note) error {
		page := enml.ConvertNote(transformer, &note, space)
		name := uniquePageName(usedNames, page.PageName())

		if err := os.WriteFile(filepath.Join(outDir, name+".xwiki"), []byte(page.Content), 0o644); err != nil {
			return fmt.Errorf("writing page %s: %w", name, err)
		}

		meta := pageMeta{
			Title:      page.Title,
			Space:      page.Space,
			Tags:       page.Tags,
			Created:    page.Created,
			Updated:    page.Updated,
			SourceFile: file,
		}
		for _, att := range page.Attachments {
			meta.Attachments = append(meta.Attachments, att.Filename)
		}
		data, err := yaml.Marshal(&meta)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, name+".yaml"), data, 0o644); err != nil {
			return fmt.Errorf("writing metadata %s: %w", name, err)
		}

		if writeAttachments && len(page.Attachments) > 0 {
			attDir := filepath.Join(outDir, name)
			if err := os.MkdirAll(attDir, 0o755); err != nil {
				return fmt.Errorf("creating attachment directory %s: %w", attDir, err)
			}
			for _, att := range page.Attachments {
				if err := os.WriteFile(filepath.Join(attDir, att.Filename), att.Data, 0o644); err != nil {
					return fmt.Errorf("writing attachment %s: %w", att.Filename, err)
				}
			}
		}

		fmt.Fprintf(w, "converted %s -> %s.xwiki (%d attachments)\n",
			note.Title, name, len(page.Attachments))
		if verbose {
			fmt.Fprintf(w, "  space %s, tags %v, source %s\n", page.Space, page.Tags, file)
		}
		converted++
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d note(s) converted to %s\n", converted, outDir)
	return nil
}
