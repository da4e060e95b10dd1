package main

import (
	"os"

	"github.com/seoulbike/bikeflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
