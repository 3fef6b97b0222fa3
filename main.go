package main

import (
	"os"

	"github.com/nutetra/doser/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
