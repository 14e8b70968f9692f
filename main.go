package main

import (
	"os"

	"github.com/bimmerbailey/eksight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
