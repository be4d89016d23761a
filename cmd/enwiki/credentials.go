// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/enwiki/internal/credentials"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored wiki and Evernote credentials",
	Long: `Credentials manages the secrets directory used by import: one file per
secret, owner-readable only. Known keys are xwiki-username, xwiki-password,
and evernote-token.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a credential (reads the value from stdin when omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCredentialsSet,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credential keys",
	RunE:  runCredentialsList,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsDelete,
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)

	rootCmd.AddCommand(credentialsCmd)
}

func credentialStore(cmd *cobra.Command) *credentials.Store {
	dir, _ := cmd.Flags().GetString("credentials-dir")
	return credentials.NewStore(dir)
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	key := args[0]

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		fmt.Fprintf(os.Stderr, "Value for %s: ", key)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading value: %w", err)
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return fmt.Errorf("empty value for %s", key)
	}

	if err := credentialStore(cmd).Save(key, value); err != nil {
		return err
	}
	fmt.Printf("Stored %s.\n", key)
	return nil
}

func runCredentialsList(cmd *cobra.Command, args []string) error {
	creds, err := credentialStore(cmd).Load()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("No credentials stored.")
		return nil
	}

	keys := make([]string, 0, len(creds))
	for k := range creds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	if err := credentialStore(cmd).Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s.\n", args[0])
	return nil
}
