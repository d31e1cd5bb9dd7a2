package cmd

import (
	"fmt"
	"log"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/wallet"
	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the public-key fingerprint for a key file",
	Run:   addressRun,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func addressRun(cmd *cobra.Command, args []string) {
	signer, err := wallet.LoadKeyFile(getKeyFilePath())
	if err != nil {
		log.Fatal(err)
	}

	pk := signer.PublicKey()
	fmt.Println("hex:   ", chain.PubKeyHex(pk))
	fmt.Println("base58:", chain.PubKeyBase58(pk))
}
