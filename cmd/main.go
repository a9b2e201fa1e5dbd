package main

import (
	"os"

	"github.com/Syxd09/code-byte-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
