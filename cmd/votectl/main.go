package main

import (
	"os"

	"voting-ledger/cmd/votectl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
