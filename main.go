package main

import (
	"os"

	"github.com/hausnetz/eos/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
