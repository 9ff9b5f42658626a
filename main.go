package main

import (
	"os"

	"github.com/asengupta/intervo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
