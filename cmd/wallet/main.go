// Command wallet is the offline key and transaction-signing tool: it has
// no network access of its own, since the core has no API surface to talk
// to. It generates keys and produces signed, hex-encoded transactions a
// node operator relays some other way.
package main

import "github.com/coreledger/node/cmd/wallet/cmd"

func main() {
	cmd.Execute()
}
