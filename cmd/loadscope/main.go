package main

import (
	"os"

	"github.com/minhtran2412/loadscope/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
