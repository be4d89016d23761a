// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the enwiki CLI.
// See docs/ARCHITECTURE § Command Surface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/enwiki/internal/credentials"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedCredentials holds secrets loaded from the credentials directory at
// startup: wiki login and, when configured, the Evernote API token.
var loadedCredentials map[string]string

// credentialDefault returns fallback when set, otherwise the stored
// credential for key, otherwise "".
func credentialDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedCredentials[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the enwiki CLI.
var rootCmd = &cobra.Command{
	Use:   "enwiki",
	Short: "Migrate Evernote exports into an XWiki wiki",
	Long: `enwiki converts Evernote ENEX export files into XWiki 2.1 pages and
uploads them over the XWiki REST API. Notes become pages, notebooks become
nested spaces, and note attachments become page attachments.

Imports are resumable: progress is checkpointed after every note, and a
history database records every attempt for later audit.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("credentials-dir")
		creds, err := credentials.NewStore(dir).Load()
		if err != nil {
			return err
		}
		loadedCredentials = creds
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./enwiki.yaml or ~/.config/enwiki/config.yaml)")
	rootCmd.PersistentFlags().String("credentials-dir", ".credentials/", "directory holding credential files")
	rootCmd.PersistentFlags().String("state-file", "", "progress state file (default: .evernote_import_progress.json)")
	rootCmd.PersistentFlags().String("db", "", "import history database (default: evernote_imports.db)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print per-note detail lines")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("enwiki")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "enwiki"))
		}
	}

	viper.SetEnvPrefix("ENWIKI")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// stringSetting resolves a string option: explicit flag, then config file or
// ENWIKI_* environment, then fallback.
func stringSetting(cmd *cobra.Command, flag, viperKey, fallback string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	if v := viper.GetString(viperKey); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
