package cmd

import (
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/wallet"
	"github.com/spf13/cobra"
)

var (
	inputHex string
	assetHex string
	toHex    string
	amount   uint64
	fee      uint64
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Build and sign a single-input, single-output transfer transaction",
	Run:   transferRun,
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().StringVarP(&inputHex, "input", "i", "", "Hex-encoded 33-byte box id being spent.")
	transferCmd.Flags().StringVarP(&assetHex, "asset", "a", "", "Hex-encoded 32-byte asset id (defaults to the intrinsic coin).")
	transferCmd.Flags().StringVarP(&toHex, "to", "t", "", "Hex-encoded 32-byte recipient public-key fingerprint.")
	transferCmd.Flags().Uint64VarP(&amount, "amount", "m", 0, "Amount to transfer.")
	transferCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Transaction fee.")

	transferCmd.MarkFlagRequired("input")
	transferCmd.MarkFlagRequired("to")
	transferCmd.MarkFlagRequired("amount")
}

func transferRun(cmd *cobra.Command, args []string) {
	signer, err := wallet.LoadKeyFile(getKeyFilePath())
	if err != nil {
		log.Fatal(err)
	}

	inputBytes, err := hex.DecodeString(trimHexPrefix(inputHex))
	if err != nil || len(inputBytes) != 33 {
		log.Fatal("input must be a 33-byte hex box id")
	}
	var boxID chain.BoxID
	copy(boxID[:], inputBytes)

	asset := chain.IntrinsicAssetID
	if assetHex != "" {
		asset, err = chain.ParsePubKeyHex(assetHex)
		if err != nil {
			log.Fatal(err)
		}
	}

	to, err := chain.ParsePubKeyHex(toHex)
	if err != nil {
		log.Fatal(err)
	}

	tx := &chain.Transaction{
		Fee:       fee,
		Timestamp: time.Now().Unix(),
		Unlockers: []chain.Unlocker{{BoxID: boxID}},
		Directives: []chain.Directive{
			chain.TransferDirective{
				Asset: asset,
				Value: amount,
				Prop:  chain.PublicKey25519Proposition{PubKey: to},
			},
		},
	}

	signingHash, err := tx.SigningHash()
	if err != nil {
		log.Fatal(err)
	}
	sig, err := signer.Sign(signingHash)
	if err != nil {
		log.Fatal(err)
	}
	tx.Signature = sig

	raw, err := tx.Bytes()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(hex.EncodeToString(raw))
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
