// Package cmd implements the wallet command-line tool.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	keyName string
	keyPath string
)

const keyExtension = ".ecdsa"

func init() {
	rootCmd.PersistentFlags().StringVarP(&keyName, "key", "k", "miner.ecdsa", "Name of the key file.")
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key-path", "p", "zblock/accounts/", "Directory holding key files.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Generate keys and sign transactions offline",
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getKeyFilePath() string {
	name := keyName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}
	return filepath.Join(keyPath, name)
}
