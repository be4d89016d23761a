// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/enwiki/internal/credentials"
	"github.com/pdiddy/enwiki/internal/enml"
	"github.com/pdiddy/enwiki/internal/importer"
	"github.com/pdiddy/enwiki/internal/progress"
	"github.com/pdiddy/enwiki/internal/store"
	"github.com/pdiddy/enwiki/internal/xwiki"
	"github.com/pdiddy/enwiki/pkg/types"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultImageTimeout = 10 * time.Second
	defaultUserAgent    = "enwiki/0.1"
)

var importCmd = &cobra.Command{
	Use:   "import <source>",
	Short: "Import an ENEX file or directory into the wiki",
	Long: `Import parses the given ENEX export file (or every .enex file under the
given directory), converts each note to XWiki 2.1 markup, and uploads the
resulting pages with their attachments and tags.

Progress is saved after every note. An interrupted run can be continued
with --resume; notes that failed can be reprocessed with --retry-failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("wiki-url", "", "XWiki base URL (e.g. https://mywiki.example.com)")
	importCmd.Flags().String("wiki-name", "", "wiki identifier in REST URLs (default: xwiki)")
	importCmd.Flags().String("username", "", "wiki username (default: xwiki-username credential)")
	importCmd.Flags().String("password", "", "wiki password (default: xwiki-password credential)")
	importCmd.Flags().String("space", "Evernote", "target space for imported pages")
	importCmd.Flags().Bool("dry-run", false, "convert and report without uploading")
	importCmd.Flags().Bool("resume", false, "continue a previous run, skipping processed notes")
	importCmd.Flags().Bool("retry-failed", false, "reprocess only notes that previously failed")
	importCmd.Flags().Bool("skip-existing", false, "skip notes already imported to this wiki")
	importCmd.Flags().Bool("download-images", false, "fetch external <img> URLs and attach them")
	importCmd.Flags().Duration("rate-limit", 0, "delay between wiki writes (default 500ms)")
	importCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 30s)")
	importCmd.Flags().Duration("image-timeout", 0, "external image fetch timeout (default 10s)")
	importCmd.Flags().Int("max-retries", 0, "retries for rate-limited or failing requests (default 3)")

	rootCmd.AddCommand(importCmd)
}

func wikiConfigFromFlags(cmd *cobra.Command) (types.WikiConfig, error) {
	baseURL := stringSetting(cmd, "wiki-url", "wiki_url", "")
	if baseURL == "" {
		return types.WikiConfig{}, fmt.Errorf("wiki URL required: pass --wiki-url, set ENWIKI_WIKI_URL, or configure wiki_url")
	}

	username, _ := cmd.Flags().GetString("username")
	username = credentialDefault(credentials.KeyWikiUsername, username)
	password, _ := cmd.Flags().GetString("password")
	password = credentialDefault(credentials.KeyWikiPassword, password)
	if username == "" || password == "" {
		return types.WikiConfig{}, fmt.Errorf("wiki credentials required: pass --username/--password or store %s and %s under the credentials directory",
			credentials.KeyWikiUsername, credentials.KeyWikiPassword)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	rateLimit, _ := cmd.Flags().GetDuration("rate-limit")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")

	return types.WikiConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		BaseURL:        baseURL,
		WikiName:       stringSetting(cmd, "wiki-name", "wiki_name", ""),
		Username:       username,
		Password:       password,
		RateLimitDelay: rateLimit,
		MaxRetries:     maxRetries,
	}, nil
}

func importConfigFromFlags(cmd *cobra.Command) types.ImportConfig {
	space, _ := cmd.Flags().GetString("space")
	if v := viper.GetString("space"); space == "Evernote" && v != "" {
		space = v
	}
	downloadImages, _ := cmd.Flags().GetBool("download-images")
	imageTimeout, _ := cmd.Flags().GetDuration("image-timeout")
	if imageTimeout == 0 {
		imageTimeout = defaultImageTimeout
	}

	return types.ImportConfig{
		Space:          space,
		StateFile:      stringSetting(cmd, "state-file", "state_file", ""),
		DatabasePath:   stringSetting(cmd, "db", "database", ""),
		DownloadImages: downloadImages,
		ImageTimeout:   imageTimeout,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	wikiCfg, err := wikiConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	importCfg := importConfigFromFlags(cmd)

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	resume, _ := cmd.Flags().GetBool("resume")
	retryFailed, _ := cmd.Flags().GetBool("retry-failed")
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")
	verbose, _ := cmd.Flags().GetBool("verbose")

	history, err := store.Open(importCfg.DatabasePath)
	if err != nil {
		return err
	}
	defer history.Close()

	transformer := &enml.Transformer{}
	if importCfg.DownloadImages {
		transformer.Fetcher = enml.NewHTTPImageFetcher(importCfg.ImageTimeout, defaultUserAgent)
	}

	imp := &importer.Importer{
		Uploader:    xwiki.NewClient(wikiCfg),
		Transformer: transformer,
		Tracker:     progress.NewTracker(importCfg.StateFile),
		Store:       history,
	}

	// Let an interrupt land between notes; progress is already on disk.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := imp.Run(ctx, importer.Options{
		Source:       args[0],
		Space:        importCfg.Space,
		WikiURL:      wikiCfg.BaseURL,
		DryRun:       dryRun,
		Resume:       resume,
		RetryFailed:  retryFailed,
		SkipExisting: skipExisting,
		Verbose:      verbose,
	}, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d note(s) failed to import", summary.Failed)
	}
	return nil
}
