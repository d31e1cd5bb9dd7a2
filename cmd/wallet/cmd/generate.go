package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/coreledger/node/internal/wallet"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	path := getKeyFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Fatal(err)
	}

	signer, err := wallet.GenerateKeySigner()
	if err != nil {
		log.Fatal(err)
	}
	if err := signer.Save(path); err != nil {
		log.Fatal(err)
	}

	fmt.Println("wrote new key to", path)
}
