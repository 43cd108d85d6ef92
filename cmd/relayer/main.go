package main

import (
	"os"

	"github.com/balancednetwork/balanced-network-interface-sub005/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
