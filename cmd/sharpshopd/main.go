package main

import (
	"os"

	"github.com/sharpshop/sharpshop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
